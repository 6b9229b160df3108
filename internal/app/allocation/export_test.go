package allocation

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithAfterClaim runs fn in SignUp right after the slot claim.
func WithAfterClaim(fn func(topicID primitive.ObjectID)) Option {
	return func(e *Engine) { e.afterClaim = fn }
}

// WithBeforeRelease runs fn whenever an unused slot is about to be given back.
func WithBeforeRelease(fn func(topicID primitive.ObjectID)) Option {
	return func(e *Engine) { e.beforeRelease = fn }
}

// Run exposes the engine's unit-of-work wrapper.
func (e *Engine) Run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return e.run(ctx, op, fn)
}
