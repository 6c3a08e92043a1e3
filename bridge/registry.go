// Package bridge exposes the device through opaque integer handles, the way
// an isolation boundary would: every object handed across is owned by exactly
// one side at a time, and consuming calls invalidate the source handle.
package bridge

import "sync"

// Handle identifies a live object in the registry. Zero is never a valid
// handle.
type Handle uint64

// registry is the process-wide arena backing all handles. Ids are never
// reused within a process lifetime.
type registry struct {
	mu      sync.Mutex
	nextID  Handle
	objects map[Handle]interface{}
}

var handles = &registry{objects: make(map[Handle]interface{})}

func (r *registry) insert(obj interface{}) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.objects[r.nextID] = obj
	return r.nextID
}

func (r *registry) get(id Handle) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objects[id]
}

// take removes and returns the object, invalidating the handle. Consuming
// operations go through here so ownership transfer is also revocation.
func (r *registry) take(id Handle) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := r.objects[id]
	delete(r.objects, id)
	return obj
}
