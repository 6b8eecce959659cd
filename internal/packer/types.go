package packer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	defaultMaxBinWeight   = 26500
	defaultMinBinWeight   = 18000
	defaultMaxItemsPerBin = 10
)

// Item is a single freight bundle. GroupID is the truck the bundle came from
// and SecondaryID the bundle number; only GroupID and GrossWeight influence
// placement.
type Item struct {
	GroupID     string
	SecondaryID string
	GrossWeight decimal.Decimal
	NettWeight  decimal.Decimal
}

// Limits bound every bin produced by a packing run.
// MinBinWeight is a soft target: bins below it are flagged, never rebalanced.
type Limits struct {
	MaxBinWeight   decimal.Decimal
	MinBinWeight   decimal.Decimal
	MaxItemsPerBin int
}

// DefaultLimits returns the conventional limits used by the loading yard.
func DefaultLimits() Limits {
	return Limits{
		MaxBinWeight:   decimal.NewFromInt(defaultMaxBinWeight),
		MinBinWeight:   decimal.NewFromInt(defaultMinBinWeight),
		MaxItemsPerBin: defaultMaxItemsPerBin,
	}
}

// Validate reports whether the limits can be used for packing.
func (l Limits) Validate() error {
	switch {
	case !l.MaxBinWeight.IsPositive():
		return fmt.Errorf("%w: max bin weight must be positive, got %s", ErrInvalidLimits, l.MaxBinWeight)
	case l.MinBinWeight.IsNegative():
		return fmt.Errorf("%w: min bin weight must not be negative, got %s", ErrInvalidLimits, l.MinBinWeight)
	case l.MaxItemsPerBin < 1:
		return fmt.Errorf("%w: max items per bin must be at least 1, got %d", ErrInvalidLimits, l.MaxItemsPerBin)
	}
	return nil
}

// Assignment annotates one input item with the bin it was placed in.
// Index is the item's position in the slice passed to Pack; Bin is 1-based.
type Assignment struct {
	Index int
	Item  Item
	Bin   int
}

// BinSummary aggregates a single bin. Items holds input indices in the order
// they were placed.
type BinSummary struct {
	Bin              int
	TotalGrossWeight decimal.Decimal
	TotalNettWeight  decimal.Decimal
	ItemsCount       int
	BelowMinWeight   bool
	// Overweight marks a degenerate bin holding a single item heavier than
	// the maximum bin weight.
	Overweight bool
	Items      []int
}

// Result is the outcome of a packing run. Assignments are listed in the order
// items were processed (truck ascending, gross weight descending); Bins are in
// creation order.
type Result struct {
	Assignments []Assignment
	Bins        []BinSummary
}

// BinCount returns the number of bins used.
func (r Result) BinCount() int {
	return len(r.Bins)
}

// BelowMinCount returns how many bins fall short of the minimum weight.
func (r Result) BelowMinCount() int {
	count := 0
	for _, b := range r.Bins {
		if b.BelowMinWeight {
			count++
		}
	}
	return count
}

// OverweightCount returns how many degenerate over-capacity bins were produced.
func (r Result) OverweightCount() int {
	count := 0
	for _, b := range r.Bins {
		if b.Overweight {
			count++
		}
	}
	return count
}

// Packer describes the behaviour required from a bin packer.
type Packer interface {
	Pack(items []Item, limits Limits) (Result, error)
}
