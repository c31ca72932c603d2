package port

import (
	"context"

	"convq/internal/domain"
)

// MediaProbe inspects a source file and reports its duration. Probe is
// synchronous; callers bound it with the context deadline.
type MediaProbe interface {
	Probe(ctx context.Context, path string) (domain.Duration, error)
}
