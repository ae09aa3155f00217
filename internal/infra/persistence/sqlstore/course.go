package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"coursestore/pkg/domain"
)

// CourseTableName is the relational table holding course rows.
const CourseTableName = "courses"

// CourseTable maps domain.Course onto the courses table.
func CourseTable() Table[*domain.Course] {
	return Table[*domain.Course]{
		Name:    CourseTableName,
		Columns: []string{"name", "begin_date", "end_date", "fee"},
		Values: func(c *domain.Course) ([]any, error) {
			c.Normalize()
			return []any{c.Name, fmtTime(c.BeginDate), fmtTime(c.EndDate), c.Fee}, nil
		},
		Scan: scanCourse,
	}
}

func scanCourse(row RowScanner) (*domain.Course, error) {
	var (
		c          domain.Course
		begin, end sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &begin, &end, &c.Fee); err != nil {
		return nil, err
	}
	var err error
	if c.BeginDate, err = parseTime(begin); err != nil {
		return nil, err
	}
	if c.EndDate, err = parseTime(end); err != nil {
		return nil, err
	}
	return &c, nil
}

// fmtTime stores dates as UTC RFC3339 text; the zero time maps to NULL.
// Values normalizes the course first so the caller's copy matches a reload.
func fmtTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(raw sql.NullString) (time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw.String, err)
	}
	return t, nil
}
