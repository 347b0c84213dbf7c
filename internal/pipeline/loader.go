package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/fsutil"
)

// ErrNoFiles is returned when the given paths contain no .hcl file.
var ErrNoFiles = errors.New("no pipeline files found")

// Loader reads pipeline files.
type Loader struct {
	types *Types
	vars  map[string]string
}

// NewLoader creates a loader that decodes resource bodies with types and
// resolves var.* references from the declared defaults and vars.
func NewLoader(types *Types, vars map[string]string) *Loader {
	return &Loader{types: types, vars: vars}
}

// Load parses every .hcl file under paths and decodes the declarations.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Pipeline loader started.", "path_count", len(paths))

	files, err := fsutil.CollectFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	logger.Debug("Discovered pipeline files.", "count", len(files))

	parser := hclparse.NewParser()
	var roots []*fileRoot
	var variables []*variableBlock
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		roots = append(roots, &root)
		variables = append(variables, root.Variables...)
	}

	values, err := resolveVariables(variables, l.vars)
	if err != nil {
		return nil, err
	}
	evalCtx := evalContext(values)

	p := &Pipeline{Files: files, Variables: values}
	names := make(map[string]hcl.Range)
	tasks := make(map[string]hcl.Range)
	for _, root := range roots {
		for _, block := range root.Retained {
			decl, err := l.decodeResource(block, evalCtx, names)
			if err != nil {
				return nil, err
			}
			p.Retained = append(p.Retained, decl)
		}
		for _, block := range root.Tasks {
			if prev, dup := tasks[block.Name]; dup {
				return nil, fmt.Errorf("%s: task %q already declared at %s", block.DefRange, block.Name, prev)
			}
			tasks[block.Name] = block.DefRange

			task := &TaskDecl{
				Name:   block.Name,
				Reads:  block.Read,
				Writes: block.Write,
				Range:  block.DefRange,
			}
			for _, c := range block.Creates {
				decl, err := l.decodeResource(c, evalCtx, names)
				if err != nil {
					return nil, err
				}
				task.Creates = append(task.Creates, decl)
			}
			p.Tasks = append(p.Tasks, task)
		}
	}

	logger.Debug("Pipeline loading complete.", "files", len(files), "variables", len(values), "retained", len(p.Retained), "tasks", len(p.Tasks))
	return p, nil
}

func (l *Loader) decodeResource(block *resourceBlock, evalCtx *hcl.EvalContext, names map[string]hcl.Range) (*ResourceDecl, error) {
	if prev, dup := names[block.Name]; dup {
		return nil, fmt.Errorf("%s: resource %q already declared at %s", block.DefRange, block.Name, prev)
	}
	names[block.Name] = block.DefRange

	typ, ok := l.types.Lookup(block.Type)
	if !ok {
		return nil, fmt.Errorf("%s: unknown resource type %q; known types: %v", block.DefRange, block.Type, l.types.Names())
	}
	desc, diags := typ.decode(block.Body, evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode resource %q: %w", block.Name, diags)
	}
	return &ResourceDecl{Type: block.Type, Name: block.Name, Description: desc, Range: block.DefRange}, nil
}
