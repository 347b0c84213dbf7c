package pipeline

import (
	"fmt"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"

	"github.com/vk/framegraph/pkg/registry"
)

// Type maps a block type label to a registered resource type and the
// description struct its body decodes into.
type Type struct {
	Name     string
	Resource registry.ResourceType
	decode   func(hcl.Body, *hcl.EvalContext) (any, hcl.Diagnostics)
}

// NewType describes resources whose bodies decode into D with gohcl and
// whose instances have type T.
func NewType[D, T any](name string) Type {
	return Type{
		Name:     name,
		Resource: registry.TypeOf[D, T](),
		decode: func(body hcl.Body, ctx *hcl.EvalContext) (any, hcl.Diagnostics) {
			var desc D
			diags := gohcl.DecodeBody(body, ctx, &desc)
			return desc, diags
		},
	}
}

// Types is the set of resource types a pipeline may use.
type Types struct {
	byName map[string]Type
}

// NewTypes builds a type table. Duplicate names panic.
func NewTypes(types ...Type) *Types {
	t := &Types{byName: make(map[string]Type, len(types))}
	for _, typ := range types {
		if _, exists := t.byName[typ.Name]; exists {
			panic(fmt.Sprintf("pipeline: resource type %q registered twice", typ.Name))
		}
		t.byName[typ.Name] = typ
	}
	return t
}

// Lookup returns the type registered under name.
func (t *Types) Lookup(name string) (Type, bool) {
	typ, ok := t.byName[name]
	return typ, ok
}

// Names returns the registered type names in sorted order.
func (t *Types) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
