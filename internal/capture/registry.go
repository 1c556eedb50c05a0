package capture

import "sync"

// Registry tracks which session owns each capture device.
type Registry struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]string)}
}

// Claim marks device as owned by owner. The returned release func is
// idempotent and only releases the claim it created.
func (r *Registry) Claim(device, owner string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.owners[device]; ok {
		return nil, &SessionConflictError{Device: device, Owner: current}
	}
	r.owners[device] = owner

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if r.owners[device] == owner {
				delete(r.owners, device)
			}
			r.mu.Unlock()
		})
	}, nil
}

// Owner returns the session currently holding device.
func (r *Registry) Owner(device string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[device]
	return owner, ok
}
