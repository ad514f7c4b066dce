// Package filter provides the admission filter chain for playlist entries.
package filter

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"github.com/osa030/19deck/internal/domain/track"
)

// Origin tells where a playlist entry came from.
type Origin int

const (
	OriginDeclared Origin = iota // Listed in a playlist file
	OriginScanned                // Discovered by a directory scan
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginDeclared:
		return "declared"
	case OriginScanned:
		return "scanned"
	default:
		return "unknown"
	}
}

// Entry is a playlist entry waiting for admission.
type Entry struct {
	Track  track.Track
	Origin Origin
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duplicate_track", "unsupported_format"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to entries of the given origin.
	AppliesTo(origin Origin) bool
	// Check checks e against the tracks admitted so far.
	Check(ctx context.Context, e Entry, accepted []track.Track) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// Names returns the registered filter names in sorted order.
func Names() []string {
	names := lo.Keys(registry)
	slices.Sort(names)
	return names
}

// decodeSettings decodes filter settings into out, then applies defaults and
// validation.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
