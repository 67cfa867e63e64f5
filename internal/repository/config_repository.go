package repository

import "sync"

// ConfigRepository holds the mutable runtime configuration that only the
// proposal workflow may change: arbitrary string values plus the approval
// threshold for new proposals.
type ConfigRepository interface {
	GetValue(key string) (string, bool)
	SetValue(key, value string)
	ApprovalThreshold() int
	SetApprovalThreshold(n int)
}

type memoryConfigRepository struct {
	mu        sync.RWMutex
	values    map[string]string
	threshold int
}

func NewConfigRepository(defaultThreshold int) ConfigRepository {
	if defaultThreshold < 1 {
		defaultThreshold = 1
	}
	return &memoryConfigRepository{
		values:    make(map[string]string),
		threshold: defaultThreshold,
	}
}

func (r *memoryConfigRepository) GetValue(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok
}

func (r *memoryConfigRepository) SetValue(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
}

func (r *memoryConfigRepository) ApprovalThreshold() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threshold
}

func (r *memoryConfigRepository) SetApprovalThreshold(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n >= 1 {
		r.threshold = n
	}
}
