package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/matzehuels/metaop/pkg/blueprint"
	errs "github.com/matzehuels/metaop/pkg/errors"
	"github.com/matzehuels/metaop/pkg/graph"
)

// Load resolves the variant named by opts.
func Load(opts Options) (blueprint.Variant, error) {
	if opts.File == "" {
		return blueprint.Builtin(opts.Variant)
	}
	variants, err := LoadFile(opts.File)
	if err != nil {
		return blueprint.Variant{}, err
	}
	if opts.Composite == "" {
		return variants[0], nil
	}
	for _, v := range variants {
		if v.Name() == opts.Composite {
			return v, nil
		}
	}
	return blueprint.Variant{}, errs.New(errs.ErrCodeNotFound, "%s: no composite %q", opts.File, opts.Composite)
}

// LoadFile reads every variant from an HCL blueprint file, or the single
// variant a serialized graph was assembled from. Serialized graphs carry
// no redirects.
func LoadFile(path string) ([]blueprint.Variant, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := graph.ReadGraphFile(path)
		if err != nil {
			return nil, err
		}
		bp, err := graph.ToBlueprint(data)
		if err != nil {
			return nil, errs.Wrap(errs.GetCode(err), err, "%s", path)
		}
		return []blueprint.Variant{{Blueprint: bp, Description: "loaded from " + filepath.Base(path)}}, nil
	case ".hcl", "":
		variants, err := blueprint.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if len(variants) == 0 {
			return nil, errs.New(errs.ErrCodeInvalidBlueprint, "%s: no composite blocks", path)
		}
		return variants, nil
	default:
		return nil, errs.New(errs.ErrCodeInvalidFormat, "%s: unsupported file type (want .hcl or .json)", path)
	}
}
