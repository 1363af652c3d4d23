package preset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/blueprint"
	"github.com/matzehuels/metaop/pkg/catalog"
	"github.com/matzehuels/metaop/pkg/composite"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

func mustColor(t *testing.T, s string) cty.Value {
	t.Helper()
	v, err := catalog.ParseColor(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func samplePreset(t *testing.T, name string) *Preset {
	t.Helper()
	p, err := New(name, blueprint.Bokeh, map[string]cty.Value{
		"blurRadius":   cty.NumberIntVal(30),
		"overlayColor": mustColor(t, "#ff0000"),
		"shape":        cty.StringVal("square"),
	})
	if err != nil {
		t.Fatal(err)
	}
	p.UpdatedAt = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	return p
}

func TestNew(t *testing.T) {
	p := samplePreset(t, "dreamy")
	want := map[string]string{
		"blurRadius":   "30",
		"overlayColor": "#ff0000ff",
		"shape":        "square",
	}
	if diff := cmp.Diff(want, p.Values); diff != "" {
		t.Errorf("Values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"blurRadius", "overlayColor", "shape"}, p.Params()); diff != "" {
		t.Errorf("Params mismatch (-want +got):\n%s", diff)
	}

	if _, err := New("bad name", blueprint.Bokeh, nil); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("New(bad name) error = %v, want INVALID_INPUT", err)
	}
}

func TestMerge(t *testing.T) {
	p := samplePreset(t, "dreamy")
	merged := p.Merge(map[string]cty.Value{
		"blurRadius": cty.NumberIntVal(12),
		"opacity":    cty.NumberFloatVal(0.8),
	})

	if got := merged.Values["blurRadius"]; got != "12" {
		t.Errorf("merged blurRadius = %q, want 12", got)
	}
	if got := merged.Values["opacity"]; got != "0.8" {
		t.Errorf("merged opacity = %q, want 0.8", got)
	}
	if got := p.Values["blurRadius"]; got != "30" {
		t.Errorf("original blurRadius = %q, want 30 (Merge must copy)", got)
	}
}

func TestApplyToComposite(t *testing.T) {
	v, err := blueprint.Builtin(blueprint.Bokeh)
	if err != nil {
		t.Fatal(err)
	}
	c, err := composite.FromVariant(context.Background(), v)
	if err != nil {
		t.Fatal(err)
	}

	p := samplePreset(t, "dreamy")
	if err := c.ApplyPreset(p.CtyValues()); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}

	tests := []struct {
		param string
		want  cty.Value
	}{
		{"blurRadius", cty.NumberIntVal(30)},
		{"overlayColor", mustColor(t, "#ff0000")},
		{"shape", cty.StringVal("square")},
	}
	for _, tt := range tests {
		got, err := c.Parameter(tt.param)
		if err != nil {
			t.Fatalf("Parameter(%s): %v", tt.param, err)
		}
		if !got.RawEquals(tt.want) {
			t.Errorf("Parameter(%s) = %s, want %s", tt.param, catalog.Format(got), catalog.Format(tt.want))
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		cfg     Config
		wantErr errs.Code
	}{
		{"default file", Config{Dir: t.TempDir()}, ""},
		{"explicit file", Config{Backend: BackendFile, Dir: t.TempDir()}, ""},
		{"redis without addr", Config{Backend: BackendRedis}, errs.ErrCodeInvalidInput},
		{"mongo without uri", Config{Backend: BackendMongo}, errs.ErrCodeInvalidInput},
		{"unknown", Config{Backend: "etcd"}, errs.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg)
			if tt.wantErr != "" {
				if !errs.Is(err, tt.wantErr) {
					t.Errorf("Open error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			s.Close()
		})
	}
}

// testStore runs the shared Store contract against s.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "dreamy"); !errs.Is(err, errs.ErrCodeNotFound) {
		t.Fatalf("Get(missing) error = %v, want NOT_FOUND", err)
	}

	for _, name := range []string{"zigzag", "dreamy"} {
		if err := s.Save(ctx, samplePreset(t, name)); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
	}

	got, err := s.Get(ctx, "dreamy")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(samplePreset(t, "dreamy"), got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, p := range list {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"dreamy", "zigzag"}, names); diff != "" {
		t.Errorf("List names mismatch (-want +got):\n%s", diff)
	}

	updated := samplePreset(t, "dreamy")
	updated.Values["blurRadius"] = "5"
	if err := s.Save(ctx, updated); err != nil {
		t.Fatalf("Save(replace): %v", err)
	}
	if got, _ := s.Get(ctx, "dreamy"); got == nil || got.Values["blurRadius"] != "5" {
		t.Errorf("replaced preset = %+v, want blurRadius 5", got)
	}

	for _, name := range []string{"dreamy", "zigzag"} {
		if err := s.Delete(ctx, name); err != nil {
			t.Fatalf("Delete(%s): %v", name, err)
		}
	}
	if err := s.Delete(ctx, "dreamy"); !errs.Is(err, errs.ErrCodeNotFound) {
		t.Errorf("Delete(missing) error = %v, want NOT_FOUND", err)
	}
	if err := s.Save(ctx, &Preset{Name: "../escape"}); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("Save(bad name) error = %v, want INVALID_INPUT", err)
	}
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestFileStoreSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, samplePreset(t, "dreamy")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("name = "), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "dreamy" {
		t.Errorf("List = %+v, want only dreamy", list)
	}
	if _, err := s.Get(ctx, "broken"); !errs.Is(err, errs.ErrCodeInvalidFormat) {
		t.Errorf("Get(broken) error = %v, want INVALID_FORMAT", err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("METAOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("METAOP_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("METAOP_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("METAOP_TEST_MONGO_URI not set")
	}
	s, err := NewMongoStore(context.Background(), uri, "metaop_test")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)
}
