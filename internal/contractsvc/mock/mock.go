// Package mock implements internal/contractsvc.ContractService as an
// in-memory map, for tests and the `contract.service.type: mock` config
// option.
package mock

import (
	"context"
	"sync"

	"github.com/srviswan/positionengine/internal/position"
)

// Service is a fixed, in-memory contract lookup table.
type Service struct {
	mu        sync.RWMutex
	contracts map[string]position.Contract
}

// New creates a Service seeded with the given contracts, keyed by
// ContractID.
func New(contracts ...position.Contract) *Service {
	s := &Service{contracts: make(map[string]position.Contract)}
	for _, c := range contracts {
		s.contracts[c.ContractID] = c
	}
	return s
}

// Put adds or replaces a contract.
func (s *Service) Put(c position.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[c.ContractID] = c
}

// Lookup implements contractsvc.ContractService.
func (s *Service) Lookup(_ context.Context, contractID string) (position.Contract, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[contractID]
	return c, ok, nil
}
