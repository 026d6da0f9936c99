package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/shelf/api"
	"github.com/agentic-research/shelf/internal/tags"
)

// NoValue is the bucket label for rows where a grouped field is unset.
const NoValue = "(none)"

// Bucket is one group of a categorical breakdown.
type Bucket struct {
	Value string
	Count int
}

// Sum is the total of a numeric field.
type Sum struct {
	Field string
	Total float64
}

// Stats summarizes a stored collection.
type Stats struct {
	Kind   string
	Path   string
	Exists bool
	Total  int
	// ByCategory holds, per grouped field, its buckets in report order.
	ByCategory map[string][]Bucket
	// Flags counts rows where each flag field is true.
	Flags map[string]int
	// Tags is the sorted vocabulary of all tags in use.
	Tags      []string
	TagCounts map[string]int
	Sum       *Sum
}

// Counts returns one category's buckets as a map.
func (st Stats) Counts(field string) map[string]int {
	out := make(map[string]int, len(st.ByCategory[field]))
	for _, b := range st.ByCategory[field] {
		out[b.Value] = b.Count
	}
	return out
}

// TagIndex maps each tag to the bitmap of row ids carrying it.
type TagIndex struct {
	bitmaps map[string]*roaring.Bitmap
}

// NewTagIndex returns an empty index.
func NewTagIndex() *TagIndex {
	return &TagIndex{bitmaps: make(map[string]*roaring.Bitmap)}
}

// Add records the tags of one row.
func (ix *TagIndex) Add(id uint32, serialized string) {
	for t := range tags.Parse(serialized) {
		bm, ok := ix.bitmaps[t]
		if !ok {
			bm = roaring.New()
			ix.bitmaps[t] = bm
		}
		bm.Add(id)
	}
}

// Vocabulary returns every tag, sorted.
func (ix *TagIndex) Vocabulary() []string {
	out := make([]string, 0, len(ix.bitmaps))
	for t := range ix.bitmaps {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Count returns how many rows carry tag.
func (ix *TagIndex) Count(tag string) int {
	if bm, ok := ix.bitmaps[tag]; ok {
		return int(bm.GetCardinality())
	}
	return 0
}

// Stats computes counts, breakdowns, the tag vocabulary and the optional
// sum for a kind in one read transaction. A kind without a table yields a
// zeroed result.
func (s *Store) Stats(ctx context.Context, k *api.Kind) (Stats, error) {
	st := Stats{
		Kind:       k.Name,
		Path:       s.path,
		ByCategory: map[string][]Bucket{},
		Flags:      map[string]int{},
		TagCounts:  map[string]int{},
		Tags:       []string{},
	}
	if k.SumField != "" {
		st.Sum = &Sum{Field: k.SumField}
	}

	exists, err := s.TableExists(ctx, k)
	if err != nil || !exists {
		return st, err
	}

	err = s.tx(ctx, "stats "+k.Name, func(tx *sql.Tx) error {
		fresh := st
		fresh.ByCategory = map[string][]Bucket{}
		fresh.Flags = map[string]int{}
		fresh.TagCounts = map[string]int{}
		if k.SumField != "" {
			fresh.Sum = &Sum{Field: k.SumField}
		}
		if err := collectStats(ctx, tx, k, &fresh); err != nil {
			return err
		}
		st = fresh
		return nil
	})
	if err != nil {
		if isMissingTable(err) {
			return st, nil
		}
		return st, storageErr("stats "+k.Name, err)
	}
	st.Exists = true
	return st, nil
}

func collectStats(ctx context.Context, tx *sql.Tx, k *api.Kind, st *Stats) error {
	if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", k.Table)).Scan(&st.Total); err != nil {
		return err
	}

	for _, g := range k.Groups {
		c, ok := resolve(k, g.Field)
		if !ok || c.derived {
			return fmt.Errorf("group %s: %w", g.Field, ErrUnknownField)
		}
		order := "n DESC, v ASC"
		if g.ByValue {
			order = "v DESC"
		}
		q := fmt.Sprintf("SELECT %s AS v, COUNT(*) AS n FROM %s GROUP BY v ORDER BY %s", c.expr, k.Table, order)
		if g.Limit > 0 {
			q += fmt.Sprintf(" LIMIT %d", g.Limit)
		}
		buckets, err := queryBuckets(ctx, tx, q)
		if err != nil {
			return fmt.Errorf("group %s: %w", g.Field, err)
		}
		st.ByCategory[g.Field] = buckets
	}

	for _, flag := range k.Flags {
		var n int
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = 1", k.Table, flag)
		if err := tx.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return fmt.Errorf("flag %s: %w", flag, err)
		}
		st.Flags[flag] = n
	}

	if st.Sum != nil {
		var total sql.NullFloat64
		q := fmt.Sprintf("SELECT SUM(%s) FROM %s", k.SumField, k.Table)
		if err := tx.QueryRowContext(ctx, q).Scan(&total); err != nil {
			return fmt.Errorf("sum %s: %w", k.SumField, err)
		}
		st.Sum.Total = total.Float64
	}

	ix, err := buildTagIndex(ctx, tx, k)
	if err != nil {
		return err
	}
	st.Tags = ix.Vocabulary()
	for _, t := range st.Tags {
		st.TagCounts[t] = ix.Count(t)
	}
	return nil
}

func queryBuckets(ctx context.Context, tx *sql.Tx, q string) ([]Bucket, error) {
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Bucket
	for rows.Next() {
		var v any
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return nil, err
		}
		label := NoValue
		switch x := v.(type) {
		case nil:
		case []byte:
			label = string(x)
		default:
			label = fmt.Sprint(x)
		}
		out = append(out, Bucket{Value: label, Count: n})
	}
	return out, rows.Err()
}

func buildTagIndex(ctx context.Context, tx *sql.Tx, k *api.Kind) (*TagIndex, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT id, tags FROM %s WHERE tags != ''", k.Table))
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ix := NewTagIndex()
	for rows.Next() {
		var id int64
		var serialized string
		if err := rows.Scan(&id, &serialized); err != nil {
			return nil, fmt.Errorf("tags: %w", err)
		}
		if id < 0 || id > math.MaxUint32 {
			continue
		}
		ix.Add(uint32(id), serialized)
	}
	return ix, rows.Err()
}
