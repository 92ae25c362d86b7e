package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPrivacyLevel is returned when a privacy level is outside the
// known set.
var ErrInvalidPrivacyLevel = errors.New("invalid privacy level")

// PrivacyLevel controls who can see an annotation.
type PrivacyLevel int

const (
	PrivacyPrivate         PrivacyLevel = 0
	PrivacyProtected       PrivacyLevel = 100
	PrivacyShared          PrivacyLevel = 200
	PrivacySharedProtected PrivacyLevel = 300
)

var privacyNames = map[PrivacyLevel]string{
	PrivacyPrivate:         "private",
	PrivacyProtected:       "protected",
	PrivacyShared:          "shared",
	PrivacySharedProtected: "shared-protected",
}

func (p PrivacyLevel) String() string {
	if name, ok := privacyNames[p]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(p)) + ")"
}

// Valid reports whether p is one of the defined levels.
func (p PrivacyLevel) Valid() bool {
	_, ok := privacyNames[p]
	return ok
}

// ParsePrivacyLevel accepts either the level name or its numeric value.
func ParsePrivacyLevel(s string) (PrivacyLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for level, name := range privacyNames {
		if name == s {
			return level, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err == nil && PrivacyLevel(n).Valid() {
		return PrivacyLevel(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPrivacyLevel, s)
}

// Annotation is a highlight and/or note attached to exactly one page.
// Lists and PrivacyLevel are filled in by storage when the annotation is
// returned as a search result.
type Annotation struct {
	URL          string       `json:"url"`
	PageURL      string       `json:"page_url"`
	Body         string       `json:"body,omitempty"`
	Comment      string       `json:"comment,omitempty"`
	CreatedWhen  int64        `json:"created_when"`
	LastEdited   int64        `json:"last_edited"`
	Lists        []int64      `json:"lists"`
	PrivacyLevel PrivacyLevel `json:"privacy_level"`
}

// IsHighlight reports whether the annotation carries highlighted text.
func (a Annotation) IsHighlight() bool {
	return a.Body != ""
}
