package secrets

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store, used in tests and dry runs.
type MemoryStore struct {
	mu         sync.Mutex
	containers map[string]*memContainer
}

type memContainer struct {
	owner    string
	versions [][]byte
	readers  map[string]bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{containers: map[string]*memContainer{}}
}

func (m *MemoryStore) get(container string) (*memContainer, error) {
	c, ok := m.containers[container]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) CreateContainer(_ context.Context, container, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[container]; !ok {
		m.containers[container] = &memContainer{owner: owner, readers: map[string]bool{}}
	}
	return nil
}

func (m *MemoryStore) Owner(_ context.Context, container string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(container)
	if err != nil {
		return "", err
	}
	return c.owner, nil
}

func (m *MemoryStore) AddVersion(_ context.Context, container string, value []byte) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(container)
	if err != nil {
		return 0, err
	}
	c.versions = append(c.versions, append([]byte(nil), value...))
	return Version(len(c.versions)), nil
}

func (m *MemoryStore) LatestVersion(_ context.Context, container string) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(container)
	if err != nil {
		return 0, err
	}
	if len(c.versions) == 0 {
		return 0, ErrNotFound
	}
	return Version(len(c.versions)), nil
}

func (m *MemoryStore) ReadLatest(_ context.Context, container string) ([]byte, Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(container)
	if err != nil {
		return nil, 0, err
	}
	if len(c.versions) == 0 {
		return nil, 0, ErrNotFound
	}
	v := c.versions[len(c.versions)-1]
	return append([]byte(nil), v...), Version(len(c.versions)), nil
}

func (m *MemoryStore) GrantRead(_ context.Context, container, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(container)
	if err != nil {
		return err
	}
	c.readers[identity] = true
	return nil
}

func (m *MemoryStore) CanRead(_ context.Context, container, identity string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(container)
	if err != nil {
		return false, err
	}
	return c.readers[identity], nil
}

func (m *MemoryStore) DeleteContainer(_ context.Context, container string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, container)
	return nil
}
