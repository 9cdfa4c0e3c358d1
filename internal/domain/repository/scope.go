package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by writes that matched no row.
var ErrNotFound = errors.New("record not found")

type ctxKey string

const (
	ownerIDKey        ctxKey = "owner_id"
	skipOwnerScopeKey ctxKey = "skip_owner_scope"
)

// WithOwner limits repository access in ctx to records owned by userID.
func WithOwner(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey, userID)
}

// WithSkipOwnerScope lifts the owner restriction (admins).
func WithSkipOwnerScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipOwnerScopeKey, true)
}

// OwnerFromContext returns the owner set by WithOwner.
func OwnerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerIDKey).(uuid.UUID)
	return id, ok
}

// SkipsOwnerScope reports whether ctx was marked by WithSkipOwnerScope.
func SkipsOwnerScope(ctx context.Context) bool {
	skip, ok := ctx.Value(skipOwnerScopeKey).(bool)
	return ok && skip
}
