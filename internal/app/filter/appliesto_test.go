package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilters_AppliesTo(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		declared bool
		scanned  bool
	}{
		{"duplicate_track_filter", NewDuplicateTrackFilter(), true, true},
		{"format_filter", NewFormatFilter(), true, false},
		{"missing_source_filter", &MissingSourceFilter{}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.filter.Name())
			assert.Equal(t, tt.declared, tt.filter.AppliesTo(OriginDeclared),
				"%s.AppliesTo(declared) mismatch", tt.name)
			assert.Equal(t, tt.scanned, tt.filter.AppliesTo(OriginScanned),
				"%s.AppliesTo(scanned) mismatch", tt.name)
		})
	}
}

func TestOrigin_String(t *testing.T) {
	assert.Equal(t, "declared", OriginDeclared.String())
	assert.Equal(t, "scanned", OriginScanned.String())
	assert.Equal(t, "unknown", Origin(9).String())
}
