// ABOUTME: Tests for version constants
// ABOUTME: Ensures identification strings are set and sensible
package version

import (
	"strings"
	"testing"
)

func TestIdentificationDefined(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Version", Version},
		{"Product", Product},
		{"Manufacturer", Manufacturer},
	}
	for _, tt := range tests {
		if tt.value == "" {
			t.Errorf("%s should not be empty", tt.name)
		}
		if len(tt.value) > 100 {
			t.Errorf("%s is unreasonably long", tt.name)
		}
	}
}

func TestVersionFormat(t *testing.T) {
	// Semantic version without a leading v
	if strings.HasPrefix(Version, "v") {
		t.Errorf("version %q should not carry a v prefix", Version)
	}
	if strings.Count(Version, ".") != 2 {
		t.Errorf("version %q is not major.minor.patch", Version)
	}
}
