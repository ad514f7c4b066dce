package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/domain/track"
	"github.com/osa030/19deck/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig creates a chain of the enabled filters, ordered by name.
func NewChainFromConfig(filters map[string]config.FilterConfig) (*Chain, error) {
	chain := NewChain()
	for _, name := range Names() {
		cfg, ok := filters[name]
		if !ok || !cfg.Enabled {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(cfg.Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("registered filter: name=%s", name)
	}

	for name := range filters {
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the entry.
// Filters are only applied if they declare they apply to the entry's origin.
func (c *Chain) Execute(ctx context.Context, e Entry, accepted []track.Track) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(e.Origin) {
			continue
		}

		result := f.Check(ctx, e, accepted)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
