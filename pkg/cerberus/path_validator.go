package cerberus

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// canonicalIDLength is the text length of an RFC 4122 UUID.
const canonicalIDLength = 36

// PathValidator guards handlers against malformed or injected identifier
// segments: any path segment that has the length of a canonical identifier
// must actually be one.
type PathValidator struct{}

// NewPathValidator creates a new validator.
func NewPathValidator() *PathValidator {
	return &PathValidator{}
}

// Validate checks every 36-character path segment. A segment of that length
// must parse as a hyphenated RFC 4122 UUID; anything else is rejected before
// it can reach a handler.
func (v *PathValidator) Validate(path string) error {
	for _, segment := range strings.Split(path, "/") {
		if len(segment) != canonicalIDLength {
			continue
		}
		if err := validateCanonicalID(segment); err != nil {
			return NewValidationError(err.Error(), segment)
		}
	}
	return nil
}

func validateCanonicalID(segment string) error {
	// uuid.Parse accepts several encodings; at 36 characters only the
	// hyphenated form is possible, but check the grouping explicitly so a
	// segment with shifted hyphens cannot slip through.
	for _, pos := range []int{8, 13, 18, 23} {
		if segment[pos] != '-' {
			return fmt.Errorf("identifier segment has malformed hyphenation")
		}
	}

	id, err := uuid.Parse(segment)
	if err != nil {
		return fmt.Errorf("identifier segment is not a valid UUID")
	}
	if id.Variant() != uuid.RFC4122 {
		return fmt.Errorf("identifier segment has unsupported UUID variant")
	}
	if v := id.Version(); v < 1 || v > 7 {
		return fmt.Errorf("identifier segment has unsupported UUID version")
	}
	return nil
}
