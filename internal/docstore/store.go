// Package docstore persists clinical notes as {id, title, content} records
package docstore

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/chartcode/internal/model"
)

// ErrNotFound is returned when a document ID does not exist
var ErrNotFound = eris.New("document not found")

// Store is the document storage collaborator
type Store interface {
	Get(ctx context.Context, id int) (*model.Document, error)
	AllIDs(ctx context.Context) ([]int, error)
	// Put inserts or replaces a document. A zero ID is assigned by the store.
	Put(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, id int) error
	Close() error
}

// Open builds the store selected by cfg.Driver and applies its schema
func Open(ctx context.Context, cfg model.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "chartcode.db"
		}
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, eris.New("postgres store requires store.dsn")
		}
		s, err := NewPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("unknown store driver %q (supported: memory, sqlite, postgres)", cfg.Driver)
	}
}

// List returns every document ordered by ID
func List(ctx context.Context, s Store) ([]model.Document, error) {
	ids, err := s.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	sort.Ints(ids)
	docs := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if eris.Is(err, ErrNotFound) {
			continue // deleted concurrently
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}
