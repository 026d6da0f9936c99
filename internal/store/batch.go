package store

import (
	"context"
	"fmt"

	"github.com/agentic-research/shelf/api"
)

// Failure records why one record of a batch was not saved.
type Failure struct {
	Index int
	Err   error
}

// ImportResult counts the outcomes of a batch.
type ImportResult struct {
	Created  int
	Skipped  int
	Failed   int
	Failures []Failure
}

// Total is the number of records processed.
func (r ImportResult) Total() int { return r.Created + r.Skipped + r.Failed }

// Add folds another result in, shifting failure indexes by offset.
func (r *ImportResult) Add(o ImportResult, offset int) {
	r.Created += o.Created
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	for _, f := range o.Failures {
		r.Failures = append(r.Failures, Failure{Index: f.Index + offset, Err: f.Err})
	}
}

// Entry is one record of a batch with its own annotation.
type Entry struct {
	Record     Record
	Annotation Annotation
	// Source, when set, prefixes the entry's failure error.
	Source string
}

// ImportAll upserts each record with the shared annotation. See ImportEach.
func (s *Store) ImportAll(ctx context.Context, k *api.Kind, records []Record, a Annotation) (ImportResult, error) {
	return s.ImportEach(ctx, k, len(records), func(i int) Entry {
		return Entry{Record: records[i], Annotation: a}
	})
}

// ImportEach upserts the n entries returned by at, each in its own commit.
// An entry that fails validation or storage is counted and the batch moves
// on; a crash midway keeps every entry committed before it. The error is
// non-nil only when the kind's schema cannot be initialized or ctx is done.
func (s *Store) ImportEach(ctx context.Context, k *api.Kind, n int, at func(i int) Entry) (ImportResult, error) {
	var res ImportResult
	if err := s.EnsureSchema(ctx, k); err != nil {
		return res, err
	}

	for i := range n {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e := at(i)
		out, err := s.Upsert(ctx, k, e.Record, e.Annotation)
		switch {
		case err != nil:
			if e.Source != "" {
				err = fmt.Errorf("%s: %w", e.Source, err)
			}
			s.log.Warn("record not saved", "kind", k.Name, "index", i, "err", err)
			res.Failed++
			res.Failures = append(res.Failures, Failure{Index: i, Err: err})
		case out.Outcome == DuplicateSkipped:
			res.Skipped++
		default:
			res.Created++
		}
	}

	s.log.Info("batch save complete", "kind", k.Name, "created", res.Created, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}
