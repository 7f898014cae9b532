package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBinWidth is returned by distance binning for widths <= 0.
	ErrInvalidBinWidth = errors.New("bin width must be greater than zero")
	// ErrUnknownPolicy is returned for an unrecognised missing-value policy.
	ErrUnknownPolicy = errors.New("unknown missing-value policy")
)

// MissingInputError means no source file matched the configured pattern.
type MissingInputError struct {
	Dir     string
	Pattern string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("no input files matching %q in %s", e.Pattern, e.Dir)
}

// ParseError means a source file could not be read as delimited text.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s (line %d): %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FeatureDerivationError means a source filename carries no year_month token.
type FeatureDerivationError struct {
	File   string
	Reason string
}

func (e *FeatureDerivationError) Error() string {
	return fmt.Sprintf("derive month from %q: %s", e.File, e.Reason)
}

// SchemaError means a required column is missing from the combined table.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("required column %q: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("required column %q is missing", e.Column)
}
