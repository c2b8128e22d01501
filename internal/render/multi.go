package render

import "sync"

// Multi fans every call out to a set of surfaces in registration order.
type Multi struct {
	mu       sync.RWMutex
	surfaces []Surface
}

// NewMulti creates a fan-out over surfaces.
func NewMulti(surfaces ...Surface) *Multi {
	return &Multi{surfaces: surfaces}
}

// Add registers another surface.
func (m *Multi) Add(s Surface) {
	m.mu.Lock()
	m.surfaces = append(m.surfaces, s)
	m.mu.Unlock()
}

func (m *Multi) Load(snap Snapshot) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.surfaces {
		s.Load(snap)
	}
}

func (m *Multi) Apply(f Frame) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.surfaces {
		s.Apply(f)
	}
}

func (m *Multi) Resize(width int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.surfaces {
		s.Resize(width)
	}
}
