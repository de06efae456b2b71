package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gradebook_go/models"
)

// Filter matches rows whose columns equal every given value. An empty
// filter matches every row of the collection.
type Filter map[string]interface{}

// Backend is the remote store the mirror writes through to. Rows are
// passed as pointers to slices of the collection's record type.
type Backend interface {
	SelectAll(ctx context.Context, c models.Collection, dest interface{}) error
	Upsert(ctx context.Context, c models.Collection, rows interface{}, conflictKeys ...string) error
	Insert(ctx context.Context, c models.Collection, rows interface{}) error
	Delete(ctx context.Context, c models.Collection, match Filter) error
}

// Transactor is implemented by backends that can apply several writes atomically.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx Backend) error) error
}

// ErrPartialReplace marks a session replace whose delete succeeded but whose
// insert failed, leaving the session with no records.
var ErrPartialReplace = errors.New("attendance session cleared but new records were not saved")

// PersistenceError wraps a failed backend call.
type PersistenceError struct {
	Op         string
	Collection models.Collection
	Err        error
	Partial    bool
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	if e.Partial {
		return ErrPartialReplace.Error() + ": " + msg
	}
	return msg
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return e.Partial && target == ErrPartialReplace
}

func persistErr(op string, c models.Collection, err error) error {
	return &PersistenceError{Op: op, Collection: c, Err: err}
}

func rowCount(rows interface{}) int {
	v := reflect.Indirect(reflect.ValueOf(rows))
	if v.Kind() != reflect.Slice {
		return 1
	}
	return v.Len()
}
