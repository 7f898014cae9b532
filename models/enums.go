package models

import (
	"fmt"
	"strings"
)

// MissingValuePolicy selects how absent floor/floorCount/buildYear values
// are resolved. Exactly one policy runs per pipeline invocation.
type MissingValuePolicy string

const (
	PolicyDrop MissingValuePolicy = "drop"
	PolicyFill MissingValuePolicy = "fill"
)

// ParsePolicy maps a config or flag value to a MissingValuePolicy.
func ParsePolicy(s string) (MissingValuePolicy, error) {
	switch MissingValuePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyDrop:
		return PolicyDrop, nil
	case PolicyFill:
		return PolicyFill, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// FloorBucket is the ordinal relative floor position.
type FloorBucket string

const (
	FloorLow    FloorBucket = "low"
	FloorMedium FloorBucket = "medium"
	FloorHigh   FloorBucket = "high"
)

// ParseFloorBucket accepts one of the three labels.
func ParseFloorBucket(s string) (FloorBucket, error) {
	switch FloorBucket(strings.ToLower(strings.TrimSpace(s))) {
	case FloorLow:
		return FloorLow, nil
	case FloorMedium:
		return FloorMedium, nil
	case FloorHigh:
		return FloorHigh, nil
	}
	return "", fmt.Errorf("unknown floor bucket %q", s)
}
