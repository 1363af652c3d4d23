package preset

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/catalog"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

// Preset is a named set of public parameter values for one variant.
// Values are kept in their display form ("30", "#ffffffff", "circle") and
// are converted back to typed values by the composite when applied.
type Preset struct {
	Name      string            `toml:"name" json:"name" bson:"_id"`
	Variant   string            `toml:"variant" json:"variant" bson:"variant"`
	Values    map[string]string `toml:"values" json:"values" bson:"values"`
	UpdatedAt time.Time         `toml:"updated_at" json:"updated_at" bson:"updated_at"`
}

// New builds a preset from typed parameter values.
func New(name, variant string, values map[string]cty.Value) (*Preset, error) {
	if err := errs.ValidateIdentifier("preset name", name); err != nil {
		return nil, err
	}
	p := &Preset{
		Name:      name,
		Variant:   variant,
		Values:    make(map[string]string, len(values)),
		UpdatedAt: time.Now().UTC(),
	}
	for k, v := range values {
		p.Values[k] = catalog.Format(v)
	}
	return p, nil
}

// Params returns the parameter names in sorted order.
func (p *Preset) Params() []string {
	return slices.Sorted(maps.Keys(p.Values))
}

// CtyValues returns the values as strings ready for ApplyPreset; property
// coercion turns them back into numbers, colors or enum values.
func (p *Preset) CtyValues() map[string]cty.Value {
	out := make(map[string]cty.Value, len(p.Values))
	for k, v := range p.Values {
		out[k] = cty.StringVal(v)
	}
	return out
}

// Merge returns a copy of p with values overriding its own.
func (p *Preset) Merge(values map[string]cty.Value) *Preset {
	out := *p
	out.Values = maps.Clone(p.Values)
	if out.Values == nil {
		out.Values = make(map[string]string, len(values))
	}
	for k, v := range values {
		out.Values[k] = catalog.Format(v)
	}
	out.UpdatedAt = time.Now().UTC()
	return &out
}

// Store persists presets by name.
type Store interface {
	// Get returns the named preset, or a NOT_FOUND error.
	Get(ctx context.Context, name string) (*Preset, error)

	// Save creates or replaces a preset.
	Save(ctx context.Context, p *Preset) error

	// Delete removes a preset. Deleting a missing preset is NOT_FOUND.
	Delete(ctx context.Context, name string) error

	// List returns every stored preset sorted by name.
	List(ctx context.Context) ([]Preset, error)

	// Close releases the backend connection.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Config selects and configures a preset backend.
type Config struct {
	Backend       string // file (default), redis or mongo
	Dir           string // File backend directory; empty uses the user config dir
	RedisAddr     string
	MongoURI      string
	MongoDatabase string // Defaults to "metaop"
}

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFileStore(cfg.Dir)
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errs.New(errs.ErrCodeInvalidInput, "redis preset backend requires an address")
		}
		return NewRedisStore(ctx, cfg.RedisAddr)
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, errs.New(errs.ErrCodeInvalidInput, "mongo preset backend requires a URI")
		}
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, errs.New(errs.ErrCodeInvalidInput, "unknown preset backend %q (want file, redis or mongo)", cfg.Backend)
	}
}

func notFound(name string) error {
	return errs.New(errs.ErrCodeNotFound, "preset %q not found", name)
}

func sortByName(ps []Preset) {
	slices.SortFunc(ps, func(a, b Preset) int { return strings.Compare(a.Name, b.Name) })
}
