// Package bindump identifies executable container formats from their magic
// bytes and decodes them into typed objects.
package bindump

import (
	"github.com/hashicorp/go-multierror"

	"github.com/blacktop/bindump/pkg/binfmt"
)

type config struct {
	strict   bool
	parallel int
	registry *Registry
}

// An Option configures Decode.
type Option func(*config)

// WithStrict turns decode warnings into an error.
func WithStrict() Option {
	return func(c *config) { c.strict = true }
}

// WithParallel decodes up to n universal binary slices concurrently.
func WithParallel(n int) Option {
	return func(c *config) { c.parallel = n }
}

// WithRegistry replaces the default magic table.
func WithRegistry(r *Registry) Option {
	return func(c *config) { c.registry = r }
}

// Decode identifies the format of dat and decodes it. The returned object
// borrows dat.
func Decode(dat []byte, opts ...Option) (binfmt.Object, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.registry == nil {
		c.registry = DefaultRegistry(c.parallel)
	}

	obj, err := c.registry.Decode(dat)
	if err != nil {
		return nil, err
	}
	if c.strict {
		var merr *multierror.Error
		for _, w := range obj.Warnings() {
			merr = multierror.Append(merr, w)
		}
		if err := merr.ErrorOrNil(); err != nil {
			return nil, err
		}
	}
	return obj, nil
}
