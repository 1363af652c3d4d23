package blueprint

import (
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	errs "github.com/matzehuels/metaop/pkg/errors"
)

// fileRoot decodes every top-level block of a blueprint file.
type fileRoot struct {
	Composites []*compositeBlock `hcl:"composite,block"`
}

type compositeBlock struct {
	Name        string           `hcl:"name,label"`
	Description string           `hcl:"description,optional"`
	Repair      bool             `hcl:"repair,optional"`
	Chain       []string         `hcl:"chain"`
	Branches    [][]string       `hcl:"branches,optional"`
	Nodes       []*nodeBlock     `hcl:"node,block"`
	Aux         []*auxBlock      `hcl:"aux,block"`
	Redirects   []*redirectBlock `hcl:"redirect,block"`
}

type nodeBlock struct {
	ID         string    `hcl:"id,label"`
	Op         string    `hcl:"op"`
	Properties cty.Value `hcl:"properties,optional"`
}

type auxBlock struct {
	Source string `hcl:"source"`
	Target string `hcl:"target"`
	Port   string `hcl:"port,optional"`
}

type redirectBlock struct {
	Param     string         `hcl:"param,label"`
	Node      string         `hcl:"node,optional"`
	Property  string         `hcl:"property,optional"`
	Transform string         `hcl:"transform,optional"`
	Targets   []*targetBlock `hcl:"target,block"`
}

type targetBlock struct {
	Node      string `hcl:"node"`
	Property  string `hcl:"property"`
	Transform string `hcl:"transform,optional"`
}

// LoadFile parses an HCL blueprint file. See [Parse].
func LoadFile(path string) ([]Variant, error) {
	if err := errs.ValidatePath(path); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNotFound, err, "read blueprint %s", path)
	}
	return Parse(src, path)
}

// Parse decodes HCL source containing one or more composite blocks:
//
//	composite "bokeh" {
//	  chain    = ["color", "divide", "median"]
//	  branches = [["noise"]]
//	  node "color"  { op = "gegl:color" }
//	  node "noise"  { op = "gegl:cell-noise"  properties = { seed = 7 } }
//	  aux { source = "noise"  target = "divide" }
//	  redirect "blurRadius" { node = "median"  property = "radius"  transform = "round" }
//	}
//
// A redirect either names a single node and property inline or lists
// several target blocks for a fan-out binding. The aux port defaults to
// "aux". Malformed files fail with INVALID_BLUEPRINT; no structural checks
// run here.
func Parse(src []byte, filename string) ([]Variant, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errs.Wrap(errs.ErrCodeInvalidBlueprint, diags, "parse %s", filename)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, errs.Wrap(errs.ErrCodeInvalidBlueprint, diags, "decode %s", filename)
	}

	variants := make([]Variant, 0, len(root.Composites))
	for _, c := range root.Composites {
		v, err := c.variant()
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidBlueprint, err, "%s: composite %q", filename, c.Name)
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func (c *compositeBlock) variant() (Variant, error) {
	bp := Blueprint{
		Name:     c.Name,
		Chain:    c.Chain,
		Branches: c.Branches,
		Repair:   c.Repair,
	}
	for _, n := range c.Nodes {
		props, err := objectAttrs(n.Properties)
		if err != nil {
			return Variant{}, errs.Wrap(errs.ErrCodeInvalidBlueprint, err, "node %q properties", n.ID)
		}
		bp.Nodes = append(bp.Nodes, NodeSpec{ID: n.ID, Op: n.Op, Properties: props})
	}
	for _, a := range c.Aux {
		port := a.Port
		if port == "" {
			port = "aux"
		}
		bp.Aux = append(bp.Aux, AuxLink{Source: a.Source, Target: a.Target, Port: port})
	}

	v := Variant{Blueprint: bp, Description: c.Description}
	for _, r := range c.Redirects {
		red, err := r.redirect()
		if err != nil {
			return Variant{}, err
		}
		v.Redirects = append(v.Redirects, red)
	}
	return v, nil
}

func (r *redirectBlock) redirect() (Redirect, error) {
	inline := r.Node != "" || r.Property != ""
	switch {
	case inline && len(r.Targets) > 0:
		return Redirect{}, errs.New(errs.ErrCodeInvalidBlueprint,
			"redirect %q: use either node/property or target blocks, not both", r.Param)
	case inline:
		return single(r.Param, r.Node, r.Property, r.Transform), nil
	case len(r.Targets) == 0:
		return Redirect{}, errs.New(errs.ErrCodeInvalidBlueprint, "redirect %q has no target", r.Param)
	}
	red := Redirect{Param: r.Param}
	for _, t := range r.Targets {
		red.Targets = append(red.Targets, Target{Node: t.Node, Property: t.Property, Transform: t.Transform})
	}
	return red, nil
}

// objectAttrs flattens an object or map value into its attributes.
// A missing or null value yields nil.
func objectAttrs(v cty.Value) (map[string]cty.Value, error) {
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, errs.New(errs.ErrCodeInvalidBlueprint, "want an object, got %s", ty.FriendlyName())
	}
	if !v.IsWhollyKnown() {
		return nil, errs.New(errs.ErrCodeInvalidBlueprint, "properties must be known")
	}
	out := make(map[string]cty.Value, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		k, val := it.Element()
		out[k.AsString()] = val
	}
	return out, nil
}
