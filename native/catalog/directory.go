package catalog

import "sync"

// ManagerDirectory is an in-process ManagerResolver. Content references map to
// collaborator handles registered by the node wiring or by RPC.
type ManagerDirectory struct {
	mu       sync.RWMutex
	managers map[[20]byte]ContentManager
}

// NewManagerDirectory constructs an empty directory.
func NewManagerDirectory() *ManagerDirectory {
	return &ManagerDirectory{managers: make(map[[20]byte]ContentManager)}
}

// Register binds a content reference to its manager, replacing any previous
// binding for the same reference.
func (d *ManagerDirectory) Register(ref [20]byte, manager ContentManager) {
	if d == nil || manager == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.managers[ref] = manager
}

// Manager implements the ManagerResolver interface.
func (d *ManagerDirectory) Manager(ref [20]byte) (ContentManager, bool) {
	if d == nil {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	manager, ok := d.managers[ref]
	return manager, ok
}
