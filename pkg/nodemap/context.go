package nodemap

import "fmt"

// Context is the capability a lookup context must provide: attribute
// lookup by name. Get and List accept the context as an untyped value;
// nil matches every registration, a value implementing Context is used
// for attribute lookup, and anything else fails with
// ErrInvalidContext.
type Context interface {
	// Attribute returns the named attribute's value and whether the
	// context defines it.
	Attribute(name string) (string, bool)
}

// Predicate guards a registration beyond its attribute filters.
type Predicate interface {
	// Evaluate reports whether the registration applies to ctx.
	Evaluate(ctx Context) bool
}

// PredicateFunc adapts a plain function to the Predicate interface.
type PredicateFunc func(Context) bool

// Evaluate implements Predicate.
func (f PredicateFunc) Evaluate(ctx Context) bool { return f(ctx) }

var _ Predicate = (PredicateFunc)(nil)

// conform checks the context capability up front so a bad context is
// an explicit invalid-argument error instead of a silent non-match.
func conform(ctx any) (Context, error) {
	if ctx == nil {
		return nil, nil
	}
	c, ok := ctx.(Context)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrInvalidContext, ctx)
	}
	return c, nil
}
