package registry

import "reflect"

// poolKey groups released instances that can back any resource with an equal
// type and description.
type poolKey struct {
	typ  ResourceType
	desc any
}

// pool parks released transient instances so that a later resource with an
// equal description reuses the allocation instead of invoking the factory.
// Resources whose lifetimes never overlap end up aliasing one instance.
type pool struct {
	free map[poolKey][]any
}

func newPool() *pool {
	return &pool{free: make(map[poolKey][]any)}
}

func keyFor(n *ResourceNode) (poolKey, bool) {
	if n.Description == nil {
		return poolKey{}, false
	}
	if !reflect.ValueOf(n.Description).Comparable() {
		return poolKey{}, false
	}
	return poolKey{typ: n.Type, desc: n.Description}, true
}

func (p *pool) take(n *ResourceNode) (any, bool) {
	if p == nil {
		return nil, false
	}
	key, ok := keyFor(n)
	if !ok {
		return nil, false
	}
	list := p.free[key]
	if len(list) == 0 {
		return nil, false
	}
	inst := list[len(list)-1]
	list[len(list)-1] = nil
	p.free[key] = list[:len(list)-1]
	return inst, true
}

func (p *pool) put(n *ResourceNode, inst any) bool {
	if p == nil {
		return false
	}
	key, ok := keyFor(n)
	if !ok {
		return false
	}
	p.free[key] = append(p.free[key], inst)
	return true
}

// size returns the number of parked instances.
func (p *pool) size() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, list := range p.free {
		total += len(list)
	}
	return total
}

// drain hands every parked instance to discard and empties the pool.
func (p *pool) drain(discard func(any)) {
	if p == nil {
		return
	}
	for key, list := range p.free {
		for _, inst := range list {
			discard(inst)
		}
		delete(p.free, key)
	}
}
