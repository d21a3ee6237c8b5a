package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects a request for a client identity using a sliding
// time window. A non-nil error means the backing store failed and no
// decision was made; the caller chooses the policy for that case.
type Limiter interface {
	Admit(ctx context.Context, identity string) (Decision, error)
}
