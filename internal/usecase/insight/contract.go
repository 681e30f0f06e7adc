package insight

import "context"

// Runner fans CPU-bound work out over a bounded pool.
type Runner interface {
	Map(ctx context.Context, n int, fn func(i int) error) error
}
