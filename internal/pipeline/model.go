package pipeline

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Pipeline is a decoded set of pipeline files.
type Pipeline struct {
	Files     []string
	Variables map[string]cty.Value
	Retained  []*ResourceDecl
	Tasks     []*TaskDecl
}

// ResourceDecl is a retained import or a task creation.
type ResourceDecl struct {
	Type        string
	Name        string
	Description any
	Range       hcl.Range
}

// TaskDecl is one task block.
type TaskDecl struct {
	Name    string
	Creates []*ResourceDecl
	Reads   []string
	Writes  []string
	Range   hcl.Range
}

// fileRoot decodes every top-level block of a pipeline file.
type fileRoot struct {
	Variables []*variableBlock `hcl:"variable,block"`
	Retained  []*resourceBlock `hcl:"retained,block"`
	Tasks     []*taskBlock     `hcl:"task,block"`
}

type variableBlock struct {
	Name     string    `hcl:"name,label"`
	Default  cty.Value `hcl:"default,optional"`
	DefRange hcl.Range `hcl:",def_range"`
}

type resourceBlock struct {
	Type     string    `hcl:"type,label"`
	Name     string    `hcl:"name,label"`
	Body     hcl.Body  `hcl:",remain"`
	DefRange hcl.Range `hcl:",def_range"`
}

type taskBlock struct {
	Name     string           `hcl:"name,label"`
	Creates  []*resourceBlock `hcl:"create,block"`
	Read     []string         `hcl:"read,optional"`
	Write    []string         `hcl:"write,optional"`
	DefRange hcl.Range        `hcl:",def_range"`
}
