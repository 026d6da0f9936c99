package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/agentic-research/shelf/api"
)

// Library maps each kind to the database file it lives in. Kinds may share
// a file or each have their own; a file is opened once.
type Library struct {
	stores map[string]*Store // by cleaned path
	kinds  map[string]*Collection
}

// OpenLibrary opens the database for every kind in paths (kind name →
// file path). Unknown kind names are rejected.
func OpenLibrary(paths map[string]string, opts ...Option) (*Library, error) {
	l := &Library{
		stores: make(map[string]*Store),
		kinds:  make(map[string]*Collection),
	}
	for _, name := range sortedKeys(paths) {
		k, err := api.Lookup(name)
		if err != nil {
			_ = l.Close()
			return nil, err
		}
		p := filepath.Clean(paths[name])
		s, ok := l.stores[p]
		if !ok {
			s, err = Open(p, opts...)
			if err != nil {
				_ = l.Close()
				return nil, err
			}
			l.stores[p] = s
		}
		l.kinds[k.Name] = &Collection{Store: s, Kind: k}
	}
	return l, nil
}

// Collection returns the kind's collection by singular or plural name.
func (l *Library) Collection(name string) (*Collection, error) {
	k, err := api.Lookup(name)
	if err != nil {
		return nil, err
	}
	c, ok := l.kinds[k.Name]
	if !ok {
		return nil, fmt.Errorf("%w %q: no database configured", api.ErrUnknownKind, k.Name)
	}
	return c, nil
}

// Collections returns every configured collection ordered by kind name.
func (l *Library) Collections() []*Collection {
	names := sortedKeys(l.kinds)
	out := make([]*Collection, 0, len(names))
	for _, n := range names {
		out = append(out, l.kinds[n])
	}
	return out
}

// Close closes every database.
func (l *Library) Close() error {
	var errs []error
	paths := make([]string, 0, len(l.stores))
	for p := range l.stores {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := l.stores[p].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// Collection is a store bound to one kind.
type Collection struct {
	Store *Store
	Kind  *api.Kind
}

func (c *Collection) EnsureSchema(ctx context.Context) error {
	return c.Store.EnsureSchema(ctx, c.Kind)
}

func (c *Collection) Upsert(ctx context.Context, rec Record, a Annotation) (UpsertResult, error) {
	return c.Store.Upsert(ctx, c.Kind, rec, a)
}

func (c *Collection) ImportAll(ctx context.Context, records []Record, a Annotation) (ImportResult, error) {
	return c.Store.ImportAll(ctx, c.Kind, records, a)
}

func (c *Collection) ImportEach(ctx context.Context, n int, at func(i int) Entry) (ImportResult, error) {
	return c.Store.ImportEach(ctx, c.Kind, n, at)
}

func (c *Collection) Search(ctx context.Context, f Filter) ([]Entity, error) {
	return c.Store.Search(ctx, c.Kind, f)
}

func (c *Collection) Get(ctx context.Context, r Ref) (Entity, error) {
	return c.Store.Get(ctx, c.Kind, r)
}

func (c *Collection) Delete(ctx context.Context, r Ref) error {
	return c.Store.Delete(ctx, c.Kind, r)
}

func (c *Collection) Annotate(ctx context.Context, r Ref, e Edit) (Entity, error) {
	return c.Store.Annotate(ctx, c.Kind, r, e)
}

func (c *Collection) Stats(ctx context.Context) (Stats, error) {
	return c.Store.Stats(ctx, c.Kind)
}
