package pipeline

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// resolveVariables merges declared defaults with overrides given as strings.
// Every override must name a declared variable, and every declared variable
// must end up with a value.
func resolveVariables(blocks []*variableBlock, overrides map[string]string) (map[string]cty.Value, error) {
	values := make(map[string]cty.Value, len(blocks))
	declared := make(map[string]hcl.Range, len(blocks))
	for _, v := range blocks {
		if prev, dup := declared[v.Name]; dup {
			return nil, fmt.Errorf("%s: variable %q already declared at %s", v.DefRange, v.Name, prev)
		}
		declared[v.Name] = v.DefRange
		if !v.Default.IsNull() {
			values[v.Name] = v.Default
		}
	}

	if len(overrides) > 0 {
		ov, err := gocty.ToCtyValue(overrides, cty.Map(cty.String))
		if err != nil {
			return nil, fmt.Errorf("invalid variable overrides: %w", err)
		}
		for it := ov.ElementIterator(); it.Next(); {
			k, val := it.Element()
			name := k.AsString()
			if _, ok := declared[name]; !ok {
				return nil, fmt.Errorf("variable %q is set but not declared", name)
			}
			values[name] = val
		}
	}

	for _, name := range slices.Sorted(maps.Keys(declared)) {
		if _, ok := values[name]; !ok {
			return nil, fmt.Errorf("%s: variable %q has no default and no value was given", declared[name], name)
		}
	}
	return values, nil
}

func evalContext(values map[string]cty.Value) *hcl.EvalContext {
	vars := cty.EmptyObjectVal
	if len(values) > 0 {
		vars = cty.ObjectVal(values)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": vars},
	}
}
