package sources

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fetchDetails looks up every id with at most limit lookups in flight.
// A failed lookup drops that id only; survivors keep the order of ids.
func fetchDetails[T any](ctx context.Context, ids []string, limit int,
	lookup func(ctx context.Context, id string) (T, error),
	onErr func(id string, err error),
) []T {
	results := make([]*T, len(ids))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				onErr(id, ctx.Err())
				return nil
			}
			rec, err := lookup(ctx, id)
			if err != nil {
				onErr(id, err)
				return nil
			}
			results[i] = &rec
			return nil
		})
	}
	_ = g.Wait()

	out := make([]T, 0, len(ids))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func capIDs(ids []string, max int) []string {
	if len(ids) > max {
		return ids[:max]
	}
	return ids
}
