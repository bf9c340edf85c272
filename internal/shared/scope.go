package shared

import (
	"context"
	"errors"
)

// TenantScope identifies the company every ledger read and write is
// bound to. Repositories take it as an explicit argument so a query
// without tenant filtering cannot be written by accident.
type TenantScope struct {
	CompanyID int64
}

// Valid reports whether the scope carries a usable company id.
func (s TenantScope) Valid() bool {
	return s.CompanyID > 0
}

// ErrMissingScope indicates a request arrived without tenant identification.
var ErrMissingScope = errors.New("tenant scope missing")

type scopeContextKey struct{}

// ContextWithScope stores the tenant scope in context.
func ContextWithScope(ctx context.Context, scope TenantScope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the tenant scope from context.
func ScopeFromContext(ctx context.Context) (TenantScope, error) {
	scope, ok := ctx.Value(scopeContextKey{}).(TenantScope)
	if !ok || !scope.Valid() {
		return TenantScope{}, ErrMissingScope
	}
	return scope, nil
}
