package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zclconf/go-cty/cty"

	errs "github.com/matzehuels/metaop/pkg/errors"
)

// runCLI executes the root command with args in an isolated config and
// cache home and returns everything written to out.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	old := out
	out = &buf
	defer func() { out = old }()

	root := New(io.Discard, LogInfo).RootCommand()
	root.SetArgs(args)
	root.SetOut(&buf)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
}

func TestCatalogCommand(t *testing.T) {
	isolate(t)

	got, err := runCLI(t, "catalog")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"gegl:median-blur", "gegl:lens-blur", "aux: aux"} {
		if !strings.Contains(got, want) {
			t.Errorf("catalog output missing %q:\n%s", want, got)
		}
	}

	got, err = runCLI(t, "catalog", "gegl:median-blur")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"radius", "int 25 [1,80]", "enum circle {square,circle,diamond}"} {
		if !strings.Contains(got, want) {
			t.Errorf("describe output missing %q:\n%s", want, got)
		}
	}

	if _, err := runCLI(t, "catalog", "gegl:nonexistent"); !errs.Is(err, errs.ErrCodeUnknownOperationKind) {
		t.Errorf("catalog unknown error = %v, want UNKNOWN_OPERATION_KIND", err)
	}
}

func TestVariantsCommand(t *testing.T) {
	isolate(t)

	got, err := runCLI(t, "variants")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"bokeh", "bokeh-repair", "bokeh-streak", "streakAngle"} {
		if !strings.Contains(got, want) {
			t.Errorf("variants output missing %q:\n%s", want, got)
		}
	}
}

func TestAssembleCommand(t *testing.T) {
	isolate(t)

	got, err := runCLI(t, "assemble", "--variant", "bokeh-streak")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"bokeh-streak", "12 nodes", "13 params", "crop.aux", "streakAngle", "fingerprint"} {
		if !strings.Contains(got, want) {
			t.Errorf("assemble output missing %q:\n%s", want, got)
		}
	}

	if _, err := runCLI(t, "assemble", "--variant", "bokeh", "--file", "x.hcl"); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("variant+file error = %v, want INVALID_INPUT", err)
	}
	if _, err := runCLI(t, "assemble", "--variant", "sparkle"); !errs.Is(err, errs.ErrCodeNotFound) {
		t.Errorf("unknown variant error = %v, want NOT_FOUND", err)
	}
}

func TestAssembleFromFile(t *testing.T) {
	isolate(t)
	file := filepath.Join("..", "..", "pkg", "blueprint", "testdata", "bokeh.hcl")

	fromFile, err := runCLI(t, "assemble", "--file", file)
	if err != nil {
		t.Fatal(err)
	}
	builtin, err := runCLI(t, "assemble", "--variant", "bokeh")
	if err != nil {
		t.Fatal(err)
	}
	if fingerprintLine(fromFile) != fingerprintLine(builtin) {
		t.Errorf("HCL and built-in fingerprints differ:\n%s\n%s", fingerprintLine(fromFile), fingerprintLine(builtin))
	}
}

func fingerprintLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "fingerprint") {
			return line
		}
	}
	return ""
}

func TestRenderCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	dst := filepath.Join(dir, "bokeh.dot")

	got, err := runCLI(t, "render", "--variant", "bokeh", "-f", "dot", "-o", dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "fresh") {
		t.Errorf("first render should be fresh:\n%s", got)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("digraph")) {
		t.Errorf("output is not DOT: %.40q", data)
	}

	got, err = runCLI(t, "render", "--variant", "bokeh", "-f", "dot", "-o", dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "cached") {
		t.Errorf("second render should be cached:\n%s", got)
	}

	if _, err := runCLI(t, "render", "-f", "gif"); !errs.Is(err, errs.ErrCodeInvalidFormat) {
		t.Errorf("bad format error = %v, want INVALID_FORMAT", err)
	}
}

func TestRenderAll(t *testing.T) {
	isolate(t)
	base := filepath.Join(t.TempDir(), "graph")

	if _, err := runCLI(t, "render", "--all", "--no-cache", "-f", "dot,json", "-o", base); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"bokeh", "bokeh-repair", "bokeh-streak"} {
		for _, ext := range []string{"dot", "json"} {
			path := base + "-" + name + "." + ext
			if _, err := os.Stat(path); err != nil {
				t.Errorf("missing %s: %v", path, err)
			}
		}
	}

	if _, err := runCLI(t, "render", "--all", "--variant", "bokeh"); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("--all with --variant error = %v, want INVALID_INPUT", err)
	}
}

func TestSetAndPresets(t *testing.T) {
	isolate(t)

	got, err := runCLI(t, "set", "blurRadius=40", "shape=diamond", "--save", "dreamy")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"40", "diamond", "Saved preset dreamy"} {
		if !strings.Contains(got, want) {
			t.Errorf("set output missing %q:\n%s", want, got)
		}
	}

	got, err = runCLI(t, "preset", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "dreamy") || !strings.Contains(got, "2 values") {
		t.Errorf("preset list output:\n%s", got)
	}

	got, err = runCLI(t, "preset", "show", "dreamy")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"variant", "bokeh", "blurRadius", "shape"} {
		if !strings.Contains(got, want) {
			t.Errorf("preset show output missing %q:\n%s", want, got)
		}
	}

	got, err = runCLI(t, "set", "--preset", "dreamy", "opacity=0.9")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"40", "diamond", "0.9"} {
		if !strings.Contains(got, want) {
			t.Errorf("set --preset output missing %q:\n%s", want, got)
		}
	}

	if _, err := runCLI(t, "set", "--variant", "bokeh-streak", "--preset", "dreamy"); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("variant mismatch error = %v, want INVALID_INPUT", err)
	}

	if _, err := runCLI(t, "preset", "delete", "dreamy"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "preset", "delete", "dreamy"); !errs.Is(err, errs.ErrCodeNotFound) {
		t.Errorf("second delete error = %v, want NOT_FOUND", err)
	}
	got, err = runCLI(t, "preset", "list")
	if err != nil || !strings.Contains(got, "No presets saved") {
		t.Errorf("preset list after delete = %q, %v", got, err)
	}
}

func TestSetErrors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want errs.Code
	}{
		{"missing value", []string{"set", "blurRadius"}, errs.ErrCodeInvalidInput},
		{"unbound", []string{"set", "radius=3"}, errs.ErrCodeUnboundParameter},
		{"reject policy", []string{"set", "--policy", "reject", "blurRadius=200"}, errs.ErrCodeValueOutOfRange},
		{"bad enum", []string{"set", "shape=hexagon"}, errs.ErrCodeInvalidValue},
		{"bad policy", []string{"set", "--policy", "wrap"}, errs.ErrCodeInvalidInput},
		{"missing preset", []string{"set", "--preset", "nope"}, errs.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.args...); !errs.Is(err, tt.want) {
				t.Errorf("error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestSetClampsByDefault(t *testing.T) {
	isolate(t)

	got, err := runCLI(t, "set", "blurRadius=200")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "80") {
		t.Errorf("blurRadius=200 should clamp to 80:\n%s", got)
	}
}

func TestConfigDrivesDefaults(t *testing.T) {
	isolate(t)
	cfg := writeConfig(t, "variant = \"bokeh-streak\"\nrange_policy = \"reject\"\n")

	got, err := runCLI(t, "--config", cfg, "set", "streakAngle=45")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "bokeh-streak") {
		t.Errorf("config variant not used:\n%s", got)
	}
	if _, err := runCLI(t, "--config", cfg, "set", "blurRadius=200"); !errs.Is(err, errs.ErrCodeValueOutOfRange) {
		t.Errorf("config policy not used: %v", err)
	}
}

func TestCachePathCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := writeConfig(t, "[cache]\ndir = \""+filepath.ToSlash(dir)+"\"\n")

	got, err := runCLI(t, "--config", cfg, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(got) != filepath.ToSlash(dir) {
		t.Errorf("cache path = %q, want %q", strings.TrimSpace(got), dir)
	}
	if _, err := runCLI(t, "--config", cfg, "cache", "clear"); err != nil {
		t.Errorf("cache clear: %v", err)
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"blurRadius=40", "fillColor=#ff8800", "note=a=b"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]cty.Value{
		"blurRadius": cty.StringVal("40"),
		"fillColor":  cty.StringVal("#ff8800"),
		"note":       cty.StringVal("a=b"),
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b cty.Value) bool { return a.RawEquals(b) })); diff != "" {
		t.Errorf("parseAssignments mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range [][]string{{"=3"}, {"radius"}, {"a=1", "a=2"}} {
		if _, err := parseAssignments(bad); !errs.Is(err, errs.ErrCodeInvalidInput) {
			t.Errorf("parseAssignments(%q) error = %v, want INVALID_INPUT", bad, err)
		}
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"svg"}},
		{"dot", []string{"dot"}},
		{"SVG, png,", []string{"svg", "png"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseFormats(tt.in)); diff != "" {
			t.Errorf("parseFormats(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name                      string
		output, variant, format   string
		multiFormat, multiVariant bool
		want                      string
	}{
		{"default", "", "bokeh", "svg", false, false, "bokeh.svg"},
		{"explicit single", "out/graph.svg", "bokeh", "svg", false, false, "out/graph.svg"},
		{"base for formats", "out/graph.svg", "bokeh", "png", true, false, "out/graph.png"},
		{"base for variants", "out/graph", "bokeh-streak", "dot", false, true, "out/graph-bokeh-streak.dot"},
		{"default for variants", "", "bokeh-repair", "json", true, true, "bokeh-repair.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outputPath(tt.output, tt.variant, tt.format, tt.multiFormat, tt.multiVariant)
			if got != tt.want {
				t.Errorf("outputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompletionCommand(t *testing.T) {
	isolate(t)
	broken := writeConfig(t, "log_level = [")

	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "__start_metaop"},
		{"zsh", "#compdef metaop"},
		{"fish", "complete -c metaop"},
		{"powershell", "Register-ArgumentCompleter"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			got, err := runCLI(t, "--config", broken, "completion", tt.shell)
			if err != nil {
				t.Fatalf("completion %s: %v", tt.shell, err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("completion %s output lacks %q", tt.shell, tt.want)
			}
		})
	}

	if _, err := runCLI(t, "completion", "tcsh"); err == nil {
		t.Error("completion tcsh should fail")
	}
}
