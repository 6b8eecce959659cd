package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/freight-binpacker/internal/packer"
)

func TestNewMemoryStorageReturnsDefaultLimits(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()

	got, err := store.GetLimits()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := packer.DefaultLimits()
	if !got.MaxBinWeight.Equal(want.MaxBinWeight) ||
		!got.MinBinWeight.Equal(want.MinBinWeight) ||
		got.MaxItemsPerBin != want.MaxItemsPerBin {
		t.Fatalf("expected default limits %+v, got %+v", want, got)
	}
}

func TestSetLimitsUpdatesState(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	next := packer.Limits{
		MaxBinWeight:   decimal.NewFromInt(24000),
		MinBinWeight:   decimal.NewFromInt(12000),
		MaxItemsPerBin: 6,
	}
	if err := store.SetLimits(next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetLimits()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.MaxBinWeight.Equal(next.MaxBinWeight) || got.MaxItemsPerBin != 6 {
		t.Fatalf("expected %+v, got %+v", next, got)
	}
}

func TestSetLimitsRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	testCases := []packer.Limits{
		{},
		{MaxBinWeight: decimal.NewFromInt(-1), MaxItemsPerBin: 1},
		{MaxBinWeight: decimal.NewFromInt(100), MinBinWeight: decimal.NewFromInt(-5), MaxItemsPerBin: 1},
		{MaxBinWeight: decimal.NewFromInt(100), MaxItemsPerBin: 0},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			store := NewMemoryStorage()
			err := store.SetLimits(tc)
			if !errors.Is(err, ErrInvalidLimits) {
				t.Fatalf("expected ErrInvalidLimits for %+v, got %v", tc, err)
			}
			if !errors.Is(err, packer.ErrInvalidLimits) {
				t.Fatalf("expected wrapped packer error, got %v", err)
			}

			// state must be untouched
			got, _ := store.GetLimits()
			if got.MaxItemsPerBin != packer.DefaultLimits().MaxItemsPerBin {
				t.Fatalf("invalid limits leaked into storage: %+v", got)
			}
		})
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func(offset int) {
			defer wg.Done()
			limits := packer.DefaultLimits()
			limits.MaxItemsPerBin = 1 + offset
			if err := store.SetLimits(limits); err != nil {
				t.Errorf("SetLimits failed: %v", err)
			}
		}(i)

		go func() {
			defer wg.Done()
			if _, err := store.GetLimits(); err != nil {
				t.Errorf("GetLimits failed: %v", err)
			}
		}()
	}

	wg.Wait()

	if _, err := store.GetLimits(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
