// Package persistence defines the document-store contract shared by the store drivers.
package persistence

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Read when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidPath is returned when a field path is empty or has empty segments.
	ErrInvalidPath = errors.New("invalid field path")
)

// Document is a stored document and its fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store is a collection/document keyed store with merge-write semantics.
//
// Field keys passed to Write may be dotted paths ("activities.1700000000000");
// with merge=true each path is set in place and every other field is left
// untouched. With merge=false the document is replaced by the given fields.
// A Write either applies all of its fields or none.
type Store interface {
	Read(ctx context.Context, collection, id string) (Document, error)
	Write(ctx context.Context, collection, id string, fields map[string]any, merge bool) error
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
	QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error)
}
