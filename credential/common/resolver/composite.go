package resolver

import (
	"context"
	"fmt"
)

// Composite delegates to the first constituent that supports an identifier.
type Composite struct {
	resolvers []Resolver
}

// NewComposite creates a composite resolver. Order is significant.
func NewComposite(resolvers ...Resolver) *Composite {
	return &Composite{resolvers: resolvers}
}

// Supports implements Resolver.
func (c *Composite) Supports(id string) bool {
	return c.pick(id) != nil
}

// Resolve implements Resolver.
func (c *Composite) Resolve(ctx context.Context, id string) (*Resolution, error) {
	r := c.pick(id)
	if r == nil {
		return nil, fmt.Errorf("%w: no resolver supports %q", ErrNotFound, id)
	}
	return r.Resolve(ctx, id)
}

func (c *Composite) pick(id string) Resolver {
	for _, r := range c.resolvers {
		if r.Supports(id) {
			return r
		}
	}
	return nil
}
