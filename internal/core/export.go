package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"coursestore/internal/blob"
	"coursestore/pkg/domain"
)

// SnapshotContentType is the media type of exported snapshots.
const SnapshotContentType = "application/json"

// Snapshot is the exported form of every stored entity.
type Snapshot[E domain.Entity] struct {
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Entities   []E       `json:"entities"`
}

// Lister is the read side ExportSnapshot needs; *Gateway satisfies it.
type Lister[E domain.Entity] interface {
	FindAll(ctx context.Context) ([]E, error)
}

// ExportSnapshot writes every entity returned by src to store under key. The key
// must not exist yet.
func ExportSnapshot[E domain.Entity](ctx context.Context, src Lister[E], store blob.Store, key string) (blob.Info, error) {
	entities, err := src.FindAll(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("export snapshot: %w", err)
	}
	snap := Snapshot[E]{ExportedAt: time.Now().UTC(), Count: len(entities), Entities: entities}
	payload, err := json.Marshal(snap)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	info, err := store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: SnapshotContentType,
		Metadata:    map[string]string{"count": strconv.Itoa(snap.Count)},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return info, nil
}

// LoadSnapshot reads a snapshot previously written by ExportSnapshot.
func LoadSnapshot[E domain.Entity](ctx context.Context, store blob.Store, key string) (Snapshot[E], error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return Snapshot[E]{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var snap Snapshot[E]
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return Snapshot[E]{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, nil
}
