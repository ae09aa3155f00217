package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/tools/go/packages"
)

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestPredicates(t *testing.T) {
	cases := []struct {
		fn   func(string) bool
		in   string
		want bool
	}{
		{InternalImportForbidden, "coursestore/internal/core", true},
		{InternalImportForbidden, "coursestore/pkg/domain", false},
		{InternalImportForbidden, "internal", false},
		{InfraImportForbidden, "coursestore/internal/infra/persistence/memory", true},
		{InfraImportForbidden, "coursestore/internal/infra", true},
		{InfraImportForbidden, "coursestore/internal/infrastructure", false},
		{WithinAny("coursestore/internal/core"), "coursestore/internal/core", true},
		{WithinAny("coursestore/internal/infra"), "coursestore/internal/infra/blob/s3", true},
		{WithinAny("coursestore/internal/core"), "coursestore/internal/corex", false},
	}
	for _, c := range cases {
		if got := c.fn(c.in); got != c.want {
			t.Fatalf("predicate(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAssertNoDirectImportsIgnoresTestsAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, src string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("a.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	write("a_test.go", "package tmp\nimport \"example.com/internal/x\"\n")
	write("sub/b.go", "package sub\nimport \"example.com/internal/y\"\n")
	write("notes.txt", "import \"example.com/internal/z\"")
	AssertNoDirectImports(t, dir, InternalImportForbidden, "test files and subdirectories are skipped")

	write("c.go", "package tmp\nimport \"example.com/internal/x\"\n")
	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "example.com/internal/x (in c.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestBoundaryViolations(t *testing.T) {
	prev := loadPackages
	t.Cleanup(func() { loadPackages = prev })
	loadPackages = func(string) ([]*packages.Package, error) {
		return []*packages.Package{
			{PkgPath: "m/internal/core", Imports: map[string]*packages.Package{"m/internal/infra/a": nil}},
			{PkgPath: "m/cmd/tool", Imports: map[string]*packages.Package{"m/internal/infra/b": nil, "fmt": nil}},
		}, nil
	}
	viols, err := boundaryViolations("m/...", WithinAny("m/internal/core"), InfraImportForbidden)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 1 || viols[0] != "m/cmd/tool -> m/internal/infra/b" {
		t.Fatalf("unexpected violations %v", viols)
	}

	rec := &recordingFatal{}
	failIfViolations(rec, "import boundary crossed", "demo", viols)
	if rec.msg == "" {
		t.Fatalf("expected failure message")
	}
}
