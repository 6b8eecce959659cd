package packer

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type bestFitPacker struct {
	logger *zap.Logger
}

// Option configures the packer returned by New.
type Option func(*bestFitPacker)

// WithLogger attaches a logger used to report degenerate bins.
func WithLogger(logger *zap.Logger) Option {
	return func(p *bestFitPacker) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Packer based on best-fit placement with truck affinity.
func New(opts ...Option) Packer {
	p := &bestFitPacker{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type bin struct {
	items []int
	gross decimal.Decimal
	nett  decimal.Decimal
}

func (b *bin) accepts(weight decimal.Decimal, limits Limits) bool {
	return len(b.items) < limits.MaxItemsPerBin &&
		b.gross.Add(weight).LessThanOrEqual(limits.MaxBinWeight)
}

func (b *bin) add(idx int, item Item) {
	b.items = append(b.items, idx)
	b.gross = b.gross.Add(item.GrossWeight)
	b.nett = b.nett.Add(item.NettWeight)
}

func (p *bestFitPacker) Pack(items []Item, limits Limits) (Result, error) {
	if err := limits.Validate(); err != nil {
		return Result{}, err
	}

	order := processingOrder(items)
	bins := make([]*bin, 0)
	// truck -> index of the bin its last bundle went into
	affinity := make(map[string]int)
	binOf := make([]int, len(items))

	for _, idx := range order {
		item := items[idx]

		target := bestFit(bins, item.GrossWeight, limits)
		if last, ok := affinity[item.GroupID]; ok && bins[last].accepts(item.GrossWeight, limits) {
			target = last
		}
		if target < 0 {
			bins = append(bins, &bin{gross: decimal.Zero, nett: decimal.Zero})
			target = len(bins) - 1
			if item.GrossWeight.GreaterThan(limits.MaxBinWeight) {
				p.logger.Warn("item exceeds max bin weight, placing it in its own bin",
					zap.String("truck", item.GroupID),
					zap.String("bundle", item.SecondaryID),
					zap.String("gross_weight", item.GrossWeight.String()),
					zap.String("max_bin_weight", limits.MaxBinWeight.String()),
					zap.Int("bin", target+1),
				)
			}
		}

		bins[target].add(idx, item)
		affinity[item.GroupID] = target
		binOf[idx] = target + 1
	}

	result := Result{
		Assignments: make([]Assignment, 0, len(order)),
		Bins:        make([]BinSummary, 0, len(bins)),
	}
	for _, idx := range order {
		result.Assignments = append(result.Assignments, Assignment{
			Index: idx,
			Item:  items[idx],
			Bin:   binOf[idx],
		})
	}
	for i, b := range bins {
		result.Bins = append(result.Bins, BinSummary{
			Bin:              i + 1,
			TotalGrossWeight: b.gross,
			TotalNettWeight:  b.nett,
			ItemsCount:       len(b.items),
			BelowMinWeight:   b.gross.LessThan(limits.MinBinWeight),
			Overweight:       b.gross.GreaterThan(limits.MaxBinWeight),
			Items:            b.items,
		})
	}

	return result, nil
}

// bestFit returns the index of the fullest bin that still accepts weight, or
// -1 when none does. Ties go to the earliest bin.
func bestFit(bins []*bin, weight decimal.Decimal, limits Limits) int {
	best := -1
	var minRemaining decimal.Decimal
	for i, b := range bins {
		if !b.accepts(weight, limits) {
			continue
		}
		remaining := limits.MaxBinWeight.Sub(b.gross)
		if best < 0 || remaining.LessThan(minRemaining) {
			best = i
			minRemaining = remaining
		}
	}
	return best
}

type groupKey struct {
	raw     string
	number  decimal.Decimal
	numeric bool
}

func newGroupKey(id string) groupKey {
	key := groupKey{raw: id}
	if n, err := decimal.NewFromString(strings.TrimSpace(id)); err == nil {
		key.number = n
		key.numeric = true
	}
	return key
}

// compareGroups orders numeric truck numbers by value ahead of textual ones,
// which are compared lexically.
func compareGroups(a, b groupKey) int {
	switch {
	case a.numeric && b.numeric:
		if c := a.number.Cmp(b.number); c != 0 {
			return c
		}
	case a.numeric:
		return -1
	case b.numeric:
		return 1
	}
	return strings.Compare(a.raw, b.raw)
}

// processingOrder returns input indices sorted by truck ascending, then gross
// weight descending. The sort is stable so equal items keep input order.
func processingOrder(items []Item) []int {
	keys := make([]groupKey, len(items))
	order := make([]int, len(items))
	for i, item := range items {
		keys[i] = newGroupKey(item.GroupID)
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		if c := compareGroups(keys[a], keys[b]); c != 0 {
			return c
		}
		return items[b].GrossWeight.Cmp(items[a].GrossWeight)
	})
	return order
}
