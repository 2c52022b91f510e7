package coupon

import (
	"context"
	"strings"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory Repository for embedding without a
// database and for tests.
type MemoryRepository struct {
	mu    sync.Mutex
	rules map[string]Rule
}

// NewMemoryRepository returns a MemoryRepository preloaded with the given rules.
func NewMemoryRepository(rules ...Rule) *MemoryRepository {
	m := &MemoryRepository{rules: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		m.rules[strings.ToUpper(rule.Code)] = rule
	}
	return m
}

// FindByCode looks up a rule by code, case-insensitively.
// Returns ErrInvalidCoupon when the code is unknown.
func (m *MemoryRepository) FindByCode(_ context.Context, code string) (*Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, ok := m.rules[strings.ToUpper(code)]
	if !ok {
		return nil, ErrInvalidCoupon
	}
	return &rule, nil
}

// IncrementUses increments the usage counter for the given coupon code.
func (m *MemoryRepository) IncrementUses(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToUpper(code)
	rule, ok := m.rules[key]
	if !ok {
		return ErrInvalidCoupon
	}
	rule.Uses++
	m.rules[key] = rule
	return nil
}
