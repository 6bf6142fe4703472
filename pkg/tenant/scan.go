package tenant

import (
	"context"
	"errors"
)

// ErrStop ends a ForEachSchema scan early without reporting an error.
var ErrStop = errors.New("stop scan")

// Isolated returns a child of ctx carrying a fresh holder bound to schema. The
// holder already attached to ctx, if any, is left untouched. The registry of the
// parent holder is used for validation.
func Isolated(ctx context.Context, schema string) (context.Context, error) {
	parent := FromContext(ctx)
	if parent == nil {
		return nil, ErrNoTenantBound
	}
	c := NewContext(parent.reg)
	if err := c.SetSchema(ctx, schema); err != nil {
		return nil, err
	}
	return Attach(ctx, c), nil
}

// ForEachSchema calls fn once per schema with an isolated context bound to it.
// Schemas that fail validation are skipped. Returning ErrStop from fn ends the
// scan with a nil error; any other error ends it and is returned.
func ForEachSchema(ctx context.Context, schemas []string, fn func(ctx context.Context, schema string) error) error {
	for _, s := range schemas {
		if err := ctx.Err(); err != nil {
			return err
		}
		sctx, err := Isolated(ctx, s)
		if errors.Is(err, ErrInvalidTenant) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(sctx, s); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}
