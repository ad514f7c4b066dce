package filter

import (
	"context"
	"os"
	"strings"

	"github.com/osa030/19deck/internal/domain/track"
)

// MissingSourceFilter rejects local sources that do not exist on disk.
// URIs with a scheme are accepted unchecked.
type MissingSourceFilter struct{}

func (f *MissingSourceFilter) Name() string {
	return "missing_source_filter"
}

func (f *MissingSourceFilter) Description() string {
	return "Rejects local sources that cannot be found"
}

func (f *MissingSourceFilter) ReturnCodes() []string {
	return []string{"missing_source"}
}

func (f *MissingSourceFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *MissingSourceFilter) AppliesTo(origin Origin) bool {
	// Scanned entries were found on disk
	return origin == OriginDeclared
}

func (f *MissingSourceFilter) Check(ctx context.Context, e Entry, accepted []track.Track) Result {
	if strings.Contains(e.Track.SourceRef, "://") {
		return Accept()
	}

	info, err := os.Stat(e.Track.SourceRef)
	if err != nil || info.IsDir() {
		return Reject("missing_source")
	}
	return Accept()
}

func init() {
	Register("missing_source_filter", func() Filter {
		return &MissingSourceFilter{}
	})
}
