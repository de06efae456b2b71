package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gradebook_go/models"
)

// row is a record in wire form: snake_case field names to JSON values.
type row map[string]interface{}

type tableSet map[models.Collection][]row

func (t tableSet) clone() tableSet {
	out := make(tableSet, len(t))
	for c, rows := range t {
		out[c] = append([]row(nil), rows...)
	}
	return out
}

func (t tableSet) selectAll(c models.Collection, dest interface{}) error {
	rows := t[c]
	if rows == nil {
		rows = []row{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (t tableSet) upsert(c models.Collection, rows interface{}, keys []string) error {
	incoming, err := toRows(rows)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		keys = []string{"id"}
	}
	for _, r := range incoming {
		match := Filter{}
		for _, k := range keys {
			v, ok := r[k]
			if !ok {
				return fmt.Errorf("row is missing conflict key %q", k)
			}
			match[k] = v
		}
		replaced := false
		for i, existing := range t[c] {
			if matches(existing, match) {
				t[c][i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			t[c] = append(t[c], r)
		}
	}
	return nil
}

func (t tableSet) insert(c models.Collection, rows interface{}) error {
	incoming, err := toRows(rows)
	if err != nil {
		return err
	}
	for _, r := range incoming {
		if id, ok := r["id"]; ok && id != "" {
			for _, existing := range t[c] {
				if matches(existing, Filter{"id": id}) {
					return fmt.Errorf("duplicate key %v in %s", id, c)
				}
			}
		}
		t[c] = append(t[c], r)
	}
	return nil
}

func (t tableSet) delete(c models.Collection, match Filter) {
	kept := t[c][:0:0]
	for _, r := range t[c] {
		if !matches(r, match) {
			kept = append(kept, r)
		}
	}
	t[c] = kept
}

func matches(r row, match Filter) bool {
	for k, v := range match {
		if fmt.Sprint(r[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func toRows(rows interface{}) ([]row, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	var out []row
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("rows must be a slice of records: %w", err)
	}
	return out, nil
}

// MemoryBackend keeps every collection in memory. When opened with a file
// path it is the offline variant: the whole dataset is rewritten to that
// file after each successful write.
type MemoryBackend struct {
	mu     sync.Mutex
	tables tableSet
	path   string
}

// NewMemoryBackend returns an empty, non-persistent backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: tableSet{}}
}

// OpenFileBackend loads the dataset stored at path, if any.
func OpenFileBackend(path string) (*MemoryBackend, error) {
	b := &MemoryBackend{tables: tableSet{}, path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read offline data file: %w", err)
	}
	if len(data) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(data, &b.tables); err != nil {
		return nil, fmt.Errorf("offline data file %s is malformed: %w", path, err)
	}
	return b, nil
}

func (b *MemoryBackend) SelectAll(ctx context.Context, c models.Collection, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tables.selectAll(c, dest)
}

func (b *MemoryBackend) Upsert(ctx context.Context, c models.Collection, rows interface{}, conflictKeys ...string) error {
	return b.write(ctx, func(t tableSet) error { return t.upsert(c, rows, conflictKeys) })
}

func (b *MemoryBackend) Insert(ctx context.Context, c models.Collection, rows interface{}) error {
	return b.write(ctx, func(t tableSet) error { return t.insert(c, rows) })
}

func (b *MemoryBackend) Delete(ctx context.Context, c models.Collection, match Filter) error {
	return b.write(ctx, func(t tableSet) error {
		t.delete(c, match)
		return nil
	})
}

// Transaction applies fn to a copy of the dataset and keeps it only when fn succeeds.
func (b *MemoryBackend) Transaction(ctx context.Context, fn func(tx Backend) error) error {
	return b.write(ctx, func(t tableSet) error { return fn(&memoryTx{tables: t}) })
}

func (b *MemoryBackend) write(ctx context.Context, fn func(tableSet) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.tables.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := b.persist(next); err != nil {
		return err
	}
	b.tables = next
	return nil
}

func (b *MemoryBackend) persist(t tableSet) error {
	if b.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

// memoryTx operates on the transaction's private copy; the owning
// MemoryBackend already holds the lock.
type memoryTx struct {
	tables tableSet
}

func (tx *memoryTx) SelectAll(_ context.Context, c models.Collection, dest interface{}) error {
	return tx.tables.selectAll(c, dest)
}

func (tx *memoryTx) Upsert(_ context.Context, c models.Collection, rows interface{}, conflictKeys ...string) error {
	return tx.tables.upsert(c, rows, conflictKeys)
}

func (tx *memoryTx) Insert(_ context.Context, c models.Collection, rows interface{}) error {
	return tx.tables.insert(c, rows)
}

func (tx *memoryTx) Delete(_ context.Context, c models.Collection, match Filter) error {
	tx.tables.delete(c, match)
	return nil
}
