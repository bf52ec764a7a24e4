// Package paginate adapts the start/end arguments of a list field to the
// range read of the domain service layer.
package paginate

import (
	"context"

	"github.com/hanpama/portalgraph/internal/args"
)

const (
	// StartArg and EndArg are the argument names read from the bag.
	StartArg = "start"
	EndArg   = "end"

	// DefaultWidth is the window size used when end is absent.
	DefaultWidth = 10
)

// RangeFunc reads the entities in [start, end) from the domain layer.
type RangeFunc[E any] func(ctx context.Context, start, end int) ([]E, error)

// Window returns the [start, end) window requested by b. start defaults to
// 0 and end to start+DefaultWidth. The window is not clamped.
func Window(b args.Bag) (start, end int) {
	start = int(b.Int64(StartArg, 0))
	end = int(b.Int64(EndArg, int64(start+DefaultWidth)))
	return start, end
}

// Paginate reads the window requested by b through fn and returns whatever
// the domain layer provides. The result is never nil on success.
func Paginate[E any](ctx context.Context, b args.Bag, fn RangeFunc[E]) ([]E, error) {
	start, end := Window(b)
	items, err := fn(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []E{}
	}
	return items, nil
}
