package graph

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/matzehuels/metaop/pkg/cache"
	"github.com/matzehuels/metaop/pkg/dag"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

// MarshalGraph converts an assembled graph to canonical JSON bytes.
func MarshalGraph(g *dag.Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteGraph(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes an assembled graph as indented JSON.
func WriteGraph(g *dag.Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(FromDAG(g)); err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "encode graph %q", g.Name())
	}
	return nil
}

// WriteGraphFile writes an assembled graph to a JSON file.
func WriteGraphFile(g *dag.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidPath, err, "create %s", path)
	}
	defer f.Close()
	return WriteGraph(g, f)
}

// ReadGraph decodes a serialized graph.
func ReadGraph(r io.Reader) (Graph, error) {
	var data Graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return Graph{}, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode graph")
	}
	return data, nil
}

// ReadGraphFile decodes a serialized graph from a JSON file.
func ReadGraphFile(path string) (Graph, error) {
	if err := errs.ValidatePath(path); err != nil {
		return Graph{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Graph{}, errs.Wrap(errs.ErrCodeNotFound, err, "open %s", path)
	}
	defer f.Close()
	return ReadGraph(f)
}

// Fingerprint returns the SHA-256 of the graph's canonical JSON. Graphs
// assembled from identical blueprints have identical fingerprints, and any
// change to structure or property values changes it.
func Fingerprint(g *dag.Graph) (string, error) {
	data, err := MarshalGraph(g)
	if err != nil {
		return "", err
	}
	return cache.Hash(data), nil
}
