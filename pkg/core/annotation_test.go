package core

import (
	"errors"
	"testing"
)

func TestParsePrivacyLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected PrivacyLevel
		hasError bool
	}{
		{in: "private", expected: PrivacyPrivate},
		{in: "Shared", expected: PrivacyShared},
		{in: "shared-protected", expected: PrivacySharedProtected},
		{in: "100", expected: PrivacyProtected},
		{in: "150", hasError: true},
		{in: "public", hasError: true},
	}

	for _, tt := range tests {
		got, err := ParsePrivacyLevel(tt.in)
		if tt.hasError {
			if !errors.Is(err, ErrInvalidPrivacyLevel) {
				t.Errorf("ParsePrivacyLevel(%q): expected ErrInvalidPrivacyLevel, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePrivacyLevel(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParsePrivacyLevel(%q) = %v, expected %v", tt.in, got, tt.expected)
		}
	}
}

func TestPrivacyLevelString(t *testing.T) {
	if PrivacyShared.String() != "shared" {
		t.Errorf("unexpected name %q", PrivacyShared.String())
	}
	if PrivacyLevel(7).Valid() {
		t.Errorf("level 7 should be invalid")
	}
	if PrivacyLevel(7).String() != "unknown(7)" {
		t.Errorf("unexpected name %q", PrivacyLevel(7).String())
	}
}
