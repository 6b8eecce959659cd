package packer

import "errors"

var (
	// ErrInvalidLimits is returned when packing limits violate their preconditions.
	ErrInvalidLimits = errors.New("invalid packing limits")
)
