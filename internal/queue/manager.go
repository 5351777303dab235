package queue

import (
	"fmt"
	"sync"
)

// Manager owns one Queue per profile uid, mirroring the multi-queue
// ownership described in original_source's scouter_events::queue::bus
// (EventLoops tracked per profile). Each logical queue's in-process state
// is owned by exactly one Manager entry, per spec.md §5.
type Manager struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

func NewManager() *Manager {
	return &Manager{queues: make(map[string]*Queue)}
}

// Register adds a Queue for profileUID. It is an error to register the
// same profile uid twice without first removing it.
func (m *Manager) Register(profileUID string, q *Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.queues[profileUID]; exists {
		return fmt.Errorf("queue: manager: profile %s already registered", profileUID)
	}
	m.queues[profileUID] = q
	return nil
}

// Get returns the Queue for profileUID, if any.
func (m *Manager) Get(profileUID string) (*Queue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[profileUID]
	return q, ok
}

// ShutdownAll shuts down every registered queue, collecting the first
// error encountered but continuing through the rest so one stuck queue
// cannot block the others from draining.
func (m *Manager) ShutdownAll() error {
	m.mu.Lock()
	queues := make(map[string]*Queue, len(m.queues))
	for k, v := range m.queues {
		queues[k] = v
	}
	m.queues = make(map[string]*Queue)
	m.mu.Unlock()

	var firstErr error
	for uid, q := range queues {
		if err := q.Shutdown(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("queue: manager: shutting down %s: %w", uid, err)
		}
	}
	return firstErr
}
