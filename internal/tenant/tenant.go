// Package tenant carries the property a request is scoped to.
package tenant

import (
	"context"
	"errors"
)

var ErrNoTenant = errors.New("no property in request scope")

type ctxKey struct{}

// WithProperty returns a context scoped to propertyID.
func WithProperty(ctx context.Context, propertyID int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, propertyID)
}

// FromContext returns the property the context is scoped to.
func FromContext(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	if !ok || id <= 0 {
		return 0, ErrNoTenant
	}
	return id, nil
}
