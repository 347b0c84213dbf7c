package registry

import "fmt"

// Factory turns a resource description into an owned backend instance.
type Factory func(description any) (any, error)

// Releasable is implemented by backend instances that hold memory which must
// be freed explicitly when the registry discards them.
type Releasable interface {
	// Release frees the memory occupied by the instance.
	Release()
}

// Factories holds the realize factories registered by the host, keyed by the
// resource type they produce.
type Factories struct {
	all map[ResourceType]Factory
}

// NewFactories creates an empty factory table.
func NewFactories() *Factories {
	return &Factories{
		all: make(map[ResourceType]Factory),
	}
}

// RegisterFactory registers fn for resources of type typ. Registering the
// same type twice is a programming error and panics.
func (f *Factories) RegisterFactory(typ ResourceType, fn Factory) {
	if _, exists := f.all[typ]; exists {
		panic(fmt.Sprintf("realize factory for %s already registered", typ))
	}
	f.all[typ] = fn
}

// Lookup returns the factory registered for typ.
func (f *Factories) Lookup(typ ResourceType) (Factory, bool) {
	if f == nil {
		return nil, false
	}
	fn, ok := f.all[typ]
	return fn, ok
}

// Len returns the number of registered factories.
func (f *Factories) Len() int {
	if f == nil {
		return 0
	}
	return len(f.all)
}

// Register is the typed form of RegisterFactory.
func Register[D, T any](f *Factories, fn func(D) (T, error)) {
	typ := TypeOf[D, T]()
	f.RegisterFactory(typ, func(description any) (any, error) {
		var desc D
		if description != nil {
			d, ok := description.(D)
			if !ok {
				return nil, fmt.Errorf("description of type %T is not a %v", description, typ.Description)
			}
			desc = d
		}
		return fn(desc)
	})
}
