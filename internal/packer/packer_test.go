package packer

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func item(group string, gross int64) Item {
	return Item{
		GroupID:     group,
		SecondaryID: fmt.Sprintf("%s-%d", group, gross),
		GrossWeight: decimal.NewFromInt(gross),
		NettWeight:  decimal.NewFromInt(gross).Mul(decimal.NewFromFloat(0.9)),
	}
}

func limits(maxWeight, minWeight int64, maxItems int) Limits {
	return Limits{
		MaxBinWeight:   decimal.NewFromInt(maxWeight),
		MinBinWeight:   decimal.NewFromInt(minWeight),
		MaxItemsPerBin: maxItems,
	}
}

// binsByIndex maps input index -> assigned bin.
func binsByIndex(result Result) map[int]int {
	out := make(map[int]int, len(result.Assignments))
	for _, a := range result.Assignments {
		out[a.Index] = a.Bin
	}
	return out
}

func TestPack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		items      []Item
		limits     Limits
		wantBins   map[int]int
		wantGross  []int64
		wantBelow  []bool
		wantCounts []int
	}{
		{
			name: "AffinityMissFallsBackToNewBin",
			items: []Item{
				item("A", 20000),
				item("A", 8000),
				item("B", 15000),
			},
			limits:     DefaultLimits(),
			wantBins:   map[int]int{0: 1, 1: 2, 2: 2},
			wantGross:  []int64{20000, 23000},
			wantBelow:  []bool{false, false},
			wantCounts: []int{1, 2},
		},
		{
			name: "AffinityBeatsTighterBestFit",
			items: []Item{
				item("A", 20000),
				item("B", 18000),
				item("B", 6000),
				item("B", 3000),
			},
			limits:     DefaultLimits(),
			wantBins:   map[int]int{0: 1, 1: 2, 2: 2, 3: 1},
			wantGross:  []int64{23000, 24000},
			wantBelow:  []bool{false, false},
			wantCounts: []int{2, 2},
		},
		{
			name: "BestFitTiePicksEarliestBin",
			items: []Item{
				item("A", 20000),
				item("B", 20000),
				item("C", 5000),
			},
			limits:     DefaultLimits(),
			wantBins:   map[int]int{0: 1, 1: 2, 2: 1},
			wantGross:  []int64{25000, 20000},
			wantBelow:  []bool{false, false},
			wantCounts: []int{2, 1},
		},
		{
			name: "ItemCountLimit",
			items: []Item{
				item("A", 100),
				item("A", 100),
				item("A", 100),
				item("A", 100),
				item("A", 100),
			},
			limits:     limits(26500, 0, 2),
			wantBins:   map[int]int{0: 1, 1: 1, 2: 2, 3: 2, 4: 3},
			wantGross:  []int64{200, 200, 100},
			wantBelow:  []bool{false, false, false},
			wantCounts: []int{2, 2, 1},
		},
		{
			name: "SortsHeaviestFirstWithinTruck",
			items: []Item{
				item("A", 5000),
				item("A", 21000),
			},
			limits:     DefaultLimits(),
			wantBins:   map[int]int{0: 1, 1: 1},
			wantGross:  []int64{26000},
			wantBelow:  []bool{false},
			wantCounts: []int{2},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := New().Pack(tc.items, tc.limits)
			require.NoError(t, err)

			assert.Equal(t, tc.wantBins, binsByIndex(got))
			require.Len(t, got.Bins, len(tc.wantGross))
			for i, b := range got.Bins {
				assert.Equal(t, i+1, b.Bin)
				assert.True(t, decimal.NewFromInt(tc.wantGross[i]).Equal(b.TotalGrossWeight),
					"bin %d gross: want %d got %s", b.Bin, tc.wantGross[i], b.TotalGrossWeight)
				assert.Equal(t, tc.wantBelow[i], b.BelowMinWeight, "bin %d below min", b.Bin)
				assert.Equal(t, tc.wantCounts[i], b.ItemsCount, "bin %d count", b.Bin)
			}
		})
	}
}

func TestPack_MinWeightFlag(t *testing.T) {
	t.Parallel()

	items := []Item{
		item("A", 20000),
		item("A", 8000),
		item("B", 15000),
	}
	lim := DefaultLimits()
	lim.MinBinWeight = decimal.NewFromInt(23001)

	got, err := New().Pack(items, lim)
	require.NoError(t, err)
	require.Len(t, got.Bins, 2)

	assert.True(t, got.Bins[0].BelowMinWeight)
	assert.True(t, got.Bins[1].BelowMinWeight)
	assert.Equal(t, 2, got.BelowMinCount())
}

func TestPack_EmptyInput(t *testing.T) {
	t.Parallel()

	got, err := New().Pack(nil, DefaultLimits())
	require.NoError(t, err)
	assert.Empty(t, got.Assignments)
	assert.Empty(t, got.Bins)
	assert.Equal(t, 0, got.BinCount())
}

func TestPack_OverweightItemGetsOwnBin(t *testing.T) {
	t.Parallel()

	items := []Item{
		item("A", 30000),
		item("A", 1000),
		item("B", 500),
	}
	got, err := New(WithLogger(zaptest.NewLogger(t))).Pack(items, DefaultLimits())
	require.NoError(t, err)

	require.Len(t, got.Bins, 2)
	assert.True(t, got.Bins[0].Overweight)
	assert.Equal(t, 1, got.Bins[0].ItemsCount)
	assert.False(t, got.Bins[1].Overweight)
	assert.Equal(t, 2, got.Bins[1].ItemsCount)
	assert.Equal(t, 1, got.OverweightCount())
}

func TestPack_NumericTrucksSortByValue(t *testing.T) {
	t.Parallel()

	items := []Item{
		item("10", 100),
		item("9", 100),
		item("TRK", 100),
		item("2", 100),
	}
	got, err := New().Pack(items, DefaultLimits())
	require.NoError(t, err)

	var trucks []string
	for _, a := range got.Assignments {
		trucks = append(trucks, a.Item.GroupID)
	}
	assert.Equal(t, []string{"2", "9", "10", "TRK"}, trucks)
}

func TestPack_StableForEqualItems(t *testing.T) {
	t.Parallel()

	items := []Item{
		{GroupID: "A", SecondaryID: "b1", GrossWeight: decimal.NewFromInt(100)},
		{GroupID: "A", SecondaryID: "b2", GrossWeight: decimal.NewFromInt(100)},
		{GroupID: "A", SecondaryID: "b3", GrossWeight: decimal.NewFromInt(100)},
	}
	got, err := New().Pack(items, DefaultLimits())
	require.NoError(t, err)

	for i, a := range got.Assignments {
		assert.Equal(t, i, a.Index)
	}
	assert.Equal(t, []int{0, 1, 2}, got.Bins[0].Items)
}

func TestPack_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	items := []Item{item("B", 100), item("A", 200), item("A", 300)}
	snapshot := append([]Item(nil), items...)

	_, err := New().Pack(items, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, snapshot, items)
}

func TestPack_InvalidLimits(t *testing.T) {
	t.Parallel()

	invalid := []Limits{
		{},
		limits(0, 0, 10),
		limits(-1, 0, 10),
		limits(26500, -1, 10),
		limits(26500, 18000, 0),
	}

	for idx, lim := range invalid {
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			if _, err := New().Pack([]Item{item("A", 1)}, lim); !errors.Is(err, ErrInvalidLimits) {
				t.Fatalf("expected ErrInvalidLimits for %+v, got %v", lim, err)
			}
		})
	}
}

func TestPack_Invariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 7))
	lim := DefaultLimits()

	for run := 0; run < 50; run++ {
		items := randomItems(rng, 1+rng.IntN(200), 26500)

		got, err := New().Pack(items, lim)
		require.NoError(t, err)

		// Conservation: every input index appears exactly once.
		seen := make(map[int]int, len(items))
		for _, b := range got.Bins {
			for _, idx := range b.Items {
				seen[idx]++
			}
		}
		require.Len(t, seen, len(items))
		for idx, n := range seen {
			require.Equal(t, 1, n, "item %d placed %d times", idx, n)
		}
		require.Len(t, got.Assignments, len(items))

		for _, b := range got.Bins {
			require.LessOrEqual(t, b.ItemsCount, lim.MaxItemsPerBin)
			require.Equal(t, len(b.Items), b.ItemsCount)
			require.True(t, b.TotalGrossWeight.LessThanOrEqual(lim.MaxBinWeight),
				"bin %d over capacity: %s", b.Bin, b.TotalGrossWeight)
			require.Equal(t, b.TotalGrossWeight.LessThan(lim.MinBinWeight), b.BelowMinWeight)
			require.False(t, b.Overweight)

			sum := decimal.Zero
			for _, idx := range b.Items {
				sum = sum.Add(items[idx].GrossWeight)
			}
			require.True(t, sum.Equal(b.TotalGrossWeight))
		}

		again, err := New().Pack(items, lim)
		require.NoError(t, err)
		require.Equal(t, got, again, "packing must be deterministic")
	}
}

func TestPack_ConsecutiveSameTruckKeepsAffinity(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 11))
	lim := DefaultLimits()

	for run := 0; run < 50; run++ {
		items := randomItems(rng, 2+rng.IntN(100), 26500)
		got, err := New().Pack(items, lim)
		require.NoError(t, err)

		// Replay placements and check that whenever the previous bundle of the
		// same truck left room, the next bundle joined it.
		gross := make(map[int]decimal.Decimal)
		count := make(map[int]int)
		for i, a := range got.Assignments {
			if i > 0 {
				prev := got.Assignments[i-1]
				if prev.Item.GroupID == a.Item.GroupID &&
					count[prev.Bin] < lim.MaxItemsPerBin &&
					gross[prev.Bin].Add(a.Item.GrossWeight).LessThanOrEqual(lim.MaxBinWeight) {
					require.Equal(t, prev.Bin, a.Bin, "assignment %d left its truck's bin", i)
				}
			}
			gross[a.Bin] = gross[a.Bin].Add(a.Item.GrossWeight)
			count[a.Bin]++
		}
	}
}

func TestNewGroupKeyOrdering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"7", "7", 0},
		{"7", "7.0", -1},
		{"7", "A", -1},
		{"A", "7", 1},
		{"A", "B", -1},
	}
	for _, tc := range tests {
		if got := compareGroups(newGroupKey(tc.a), newGroupKey(tc.b)); got != tc.want {
			t.Fatalf("compareGroups(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func randomItems(rng *rand.Rand, n int, maxWeight int) []Item {
	items := make([]Item, n)
	for i := range items {
		gross := int64(1 + rng.IntN(maxWeight))
		items[i] = Item{
			GroupID:     fmt.Sprintf("%d", 100+rng.IntN(12)),
			SecondaryID: fmt.Sprintf("bundle-%d", i),
			GrossWeight: decimal.NewFromInt(gross),
			NettWeight:  decimal.NewFromInt(gross * 9 / 10),
		}
	}
	return items
}

func BenchmarkPackSmall(b *testing.B) {
	benchmarkPack(b, 100)
}

func BenchmarkPackLarge(b *testing.B) {
	benchmarkPack(b, 5_000)
}

func benchmarkPack(b *testing.B, n int) {
	rng := rand.New(rand.NewPCG(1, 2))
	items := randomItems(rng, n, 12000)
	p := New()
	lim := DefaultLimits()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Pack(items, lim); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}
