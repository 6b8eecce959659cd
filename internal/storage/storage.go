package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eugenenazirov/freight-binpacker/internal/packer"
)

var (
	// ErrInvalidLimits indicates the provided limits violate validation rules.
	ErrInvalidLimits = errors.New("packing limits rejected")
)

// Storage provides access to the packing limits used when a request does not
// carry its own.
type Storage interface {
	GetLimits() (packer.Limits, error)
	SetLimits(limits packer.Limits) error
}

// MemoryStorage keeps limits in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu     sync.RWMutex
	limits packer.Limits
}

// NewMemoryStorage initialises storage with the default limits.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		limits: packer.DefaultLimits(),
	}
}

// GetLimits returns the currently configured limits.
func (s *MemoryStorage) GetLimits() (packer.Limits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.limits, nil
}

// SetLimits validates and stores the provided limits.
func (s *MemoryStorage) SetLimits(limits packer.Limits) error {
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLimits, err)
	}

	s.mu.Lock()
	s.limits = limits
	s.mu.Unlock()

	return nil
}
