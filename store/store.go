// Package store persists library records as JSON documents keyed by table and
// ID. Backends guarantee that each call either fully applies or fails.
package store

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound indicates no record exists under the requested table and ID.
var ErrNotFound = errors.New("record not found")

// Tables used by the library.
const (
	TableBooks      = "books"
	TableCategories = "categories"
	TableLoans      = "loans"
	TableRequests   = "requests"
	TableUsers      = "users"
	TableAudit      = "audit"
)

// Filter selects documents whose top-level fields equal the given values.
// Values are compared in their printed form, so {"total_copies": "3"} matches
// a numeric 3. An empty filter matches every document.
type Filter map[string]string

// Store is the persistence collaborator the library writes through.
type Store interface {
	Get(ctx context.Context, table, id string) ([]byte, error)
	GetAll(ctx context.Context, table string, filter Filter) ([][]byte, error)
	Put(ctx context.Context, table, id string, doc []byte) error
	Patch(ctx context.Context, table, id string, fields map[string]any) error
	Delete(ctx context.Context, table, id string) error
	Close() error
}

// Match reports whether doc satisfies f.
func (f Filter) Match(doc []byte) (bool, error) {
	if len(f) == 0 {
		return true, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	for key, want := range f {
		got, ok := fields[key]
		if !ok || got == nil {
			return false, nil
		}
		if fmt.Sprint(got) != want {
			return false, nil
		}
	}
	return true, nil
}

func filterDocs(docs [][]byte, f Filter) ([][]byte, error) {
	out := make([][]byte, 0, len(docs))
	for _, doc := range docs {
		ok, err := f.Match(doc)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// mergeFields overwrites top-level fields of doc.
func mergeFields(doc []byte, fields map[string]any) ([]byte, error) {
	var merged map[string]any
	if err := json.Unmarshal(doc, &merged); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func checkKey(table, id string) error {
	if table == "" || id == "" {
		return fmt.Errorf("store: table and id are required (got %q/%q)", table, id)
	}
	return nil
}
