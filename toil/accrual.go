package toil

import (
	"context"

	"github.com/warp/toil-engine/generic"
)

// AccrualComputer is the external TOIL computation the Tracker invokes when a
// day becomes eligible. Its result is interpreted only as success or failure.
// The Tracker imposes no timeout; implementations own that.
type AccrualComputer interface {
	ComputeToilForDay(ctx context.Context, userID generic.UserID, date generic.TimePoint) error
}

// AccrualFunc adapts a plain function to AccrualComputer.
type AccrualFunc func(ctx context.Context, userID generic.UserID, date generic.TimePoint) error

func (f AccrualFunc) ComputeToilForDay(ctx context.Context, userID generic.UserID, date generic.TimePoint) error {
	return f(ctx, userID, date)
}
