package dag

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/matzehuels/metaop/pkg/catalog"
)

var (
	// ErrInvalidNodeID is returned by [Builder.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Builder.AddNode] when a node with the
	// same ID already exists, including the reserved proxy IDs.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrProxyRole is returned by [Builder.AddNode] for nodes with
	// [RoleProxy]. The builder creates both proxies itself.
	ErrProxyRole = errors.New("proxy nodes are created by the builder")

	// ErrUnknownNode is returned when a node ID does not exist in the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownSourceNode is returned by [Builder.Connect] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Builder.Connect] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrInvalidEdgeEndpoint is returned by [Builder.Connect] when an edge
	// leaves the Output proxy or enters the Input proxy. Input has no input
	// ports and Output has no output port.
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")

	// ErrUnknownPort is returned by [Builder.Connect] when the target node's
	// kind has no input port with the edge's port name.
	ErrUnknownPort = errors.New("unknown port")

	// ErrPortOccupied is returned by [Builder.Connect] when the target input
	// port already has an incoming edge. Every input port accepts at most one.
	ErrPortOccupied = errors.New("input port already connected")

	// ErrChainFork is returned by [Builder.Connect] when a node already has an
	// outgoing chain edge. The main chain is a single path.
	ErrChainFork = errors.New("main chain forks")

	// ErrGraphHasCycle is returned by [Builder.Build] when a cycle is detected.
	// Cycles are detected using depth-first search with white/gray/black
	// coloring.
	ErrGraphHasCycle = errors.New("graph contains a cycle")

	// ErrFrozen is returned by every [Builder] method once [Builder.Build] has
	// succeeded. The built graph's topology never changes.
	ErrFrozen = errors.New("graph is frozen")

	// ErrUnknownProperty is returned when a node's kind has no property with
	// the given name.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrSealedNode is returned by [Graph.SetProperty] for repair nodes, whose
	// properties are fixed at assembly.
	ErrSealedNode = errors.New("node is sealed")
)

// Reserved IDs of the two boundary proxies.
const (
	InputID  = "input"
	OutputID = "output"
)

// Role distinguishes boundary proxies and repair stages from regular
// operation nodes.
type Role int

const (
	// RoleOperation is a regular node instantiated from a blueprint.
	RoleOperation Role = iota
	// RoleProxy marks the Input and Output boundary nodes.
	RoleProxy
	// RoleRepair marks a sealed normalization stage appended by the assembler.
	// Its properties are fixed and never bound to a public parameter.
	RoleRepair
)

// String returns "operation", "proxy" or "repair".
func (r Role) String() string {
	switch r {
	case RoleProxy:
		return "proxy"
	case RoleRepair:
		return "repair"
	default:
		return "operation"
	}
}

// Node is a vertex of the filter graph. Nodes are values; the graph owns the
// canonical copy and hands out copies.
type Node struct {
	ID     string       // Unique identifier within the graph
	Kind   catalog.Kind // Operation kind; proxies are pass-through nodes
	Role   Role
	Handle uuid.UUID // Opaque name-based handle, stable across rebuilds
}

// IsProxy reports whether the node is the Input or Output proxy.
func (n Node) IsProxy() bool { return n.Role == RoleProxy }

// IsSealed reports whether the node's properties are fixed.
func (n Node) IsSealed() bool { return n.Role == RoleRepair }

// EdgeKind classifies an edge by the stream it carries.
type EdgeKind int

const (
	// EdgeChain is a link of the main chain from Input to Output.
	EdgeChain EdgeKind = iota
	// EdgeBranch feeds a side chain's main input.
	EdgeBranch
	// EdgeAux feeds an auxiliary input port.
	EdgeAux
)

// String returns "chain", "branch" or "aux".
func (k EdgeKind) String() string {
	switch k {
	case EdgeBranch:
		return "branch"
	case EdgeAux:
		return "aux"
	default:
		return "chain"
	}
}

// Edge connects the main output of From to the input port Port of To.
// Chain and branch edges target [catalog.PortInput]; aux edges target one of
// the target kind's auxiliary ports.
type Edge struct {
	From string
	To   string
	Port string
	Kind EdgeKind
}

// Assignment is one property write used by [Graph.SetProperties].
type Assignment struct {
	Node     string
	Property string
	Value    cty.Value
}

type portKey struct{ node, port string }

var handleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/matzehuels/metaop"))

// Handle returns the deterministic handle of node id in the graph named name.
func Handle(name, id string) uuid.UUID {
	return uuid.NewSHA1(handleNamespace, []byte(name+"/"+id))
}

// Graph is an assembled filter graph. Its topology is immutable and may be
// read concurrently without locking; property values live in a store guarded
// by a read-write mutex, so reads can run alongside serialized writes.
//
// The zero value is not usable - build a Graph with [Builder].
type Graph struct {
	name     string
	nodes    map[string]*Node
	order    []string
	edges    []Edge
	inbound  map[portKey]Edge
	outgoing map[string][]Edge

	mu    sync.RWMutex
	props map[string]map[string]cty.Value
}

// Builder is the only way to create and mutate the topology of a [Graph].
// It starts with the Input and Output proxies already present.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	g      *Graph
	frozen bool
}

// NewBuilder returns a builder for a graph named name. The name seeds the
// node handles, so two graphs with the same name and node IDs have the same
// handles.
func NewBuilder(name string) *Builder {
	g := &Graph{
		name:     name,
		nodes:    make(map[string]*Node),
		inbound:  make(map[portKey]Edge),
		outgoing: make(map[string][]Edge),
		props:    make(map[string]map[string]cty.Value),
	}
	b := &Builder{g: g}
	b.add(Node{ID: InputID, Kind: catalog.KindNop, Role: RoleProxy}, nil)
	b.add(Node{ID: OutputID, Kind: catalog.KindNop, Role: RoleProxy}, nil)
	return b
}

// AddNode adds a node of n.Kind with its catalog defaults as initial
// property values. The handle is derived from the graph name and node ID;
// any handle set on n is ignored. Proxy roles cannot be added.
func (b *Builder) AddNode(n Node) error {
	if b.frozen {
		return ErrFrozen
	}
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := b.g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Role == RoleProxy {
		return ErrProxyRole
	}
	desc, err := catalog.Describe(n.Kind)
	if err != nil {
		return err
	}
	b.add(n, desc.Defaults())
	return nil
}

func (b *Builder) add(n Node, props map[string]cty.Value) {
	n.Handle = Handle(b.g.name, n.ID)
	if props == nil {
		props = map[string]cty.Value{}
	}
	b.g.nodes[n.ID] = &n
	b.g.order = append(b.g.order, n.ID)
	b.g.props[n.ID] = props
}

// SetProperty sets the initial value of a node property. The value is
// stored as given; callers coerce it against the catalog first.
func (b *Builder) SetProperty(id, name string, v cty.Value) error {
	if b.frozen {
		return ErrFrozen
	}
	props, ok := b.g.props[id]
	if !ok {
		return ErrUnknownNode
	}
	if _, ok := props[name]; !ok {
		return ErrUnknownProperty
	}
	props[name] = v
	return nil
}

// Node returns the node with the given ID, for inspection while building.
func (b *Builder) Node(id string) (Node, bool) { return b.g.Node(id) }

// Connect adds an edge. It returns ErrUnknownSourceNode or
// ErrUnknownTargetNode for missing endpoints, ErrInvalidEdgeEndpoint for
// edges leaving Output or entering Input, ErrUnknownPort if the target
// kind has no such input port, ErrPortOccupied if the port already has an
// incoming edge, and ErrChainFork if From already continues the main chain.
func (b *Builder) Connect(e Edge) error {
	if b.frozen {
		return ErrFrozen
	}
	g := b.g
	from, ok := g.nodes[e.From]
	if !ok {
		return ErrUnknownSourceNode
	}
	to, ok := g.nodes[e.To]
	if !ok {
		return ErrUnknownTargetNode
	}
	if from.ID == OutputID || to.ID == InputID {
		return ErrInvalidEdgeEndpoint
	}
	if err := checkPort(to, e); err != nil {
		return err
	}
	key := portKey{e.To, e.Port}
	if _, taken := g.inbound[key]; taken {
		return ErrPortOccupied
	}
	if e.Kind == EdgeChain && slices.ContainsFunc(g.outgoing[e.From], isChain) {
		return ErrChainFork
	}
	g.edges = append(g.edges, e)
	g.inbound[key] = e
	g.outgoing[e.From] = append(g.outgoing[e.From], e)
	return nil
}

func checkPort(to *Node, e Edge) error {
	if e.Kind != EdgeAux {
		if e.Port != catalog.PortInput {
			return ErrUnknownPort
		}
		return nil
	}
	if to.IsProxy() {
		return ErrUnknownPort
	}
	desc, err := catalog.Describe(to.Kind)
	if err != nil {
		return err
	}
	if !desc.HasAuxPort(e.Port) {
		return ErrUnknownPort
	}
	return nil
}

func isChain(e Edge) bool { return e.Kind == EdgeChain }

// Build checks the graph for cycles and freezes it. On success the builder
// rejects every further call with ErrFrozen. On failure the graph is not
// returned.
func (b *Builder) Build() (*Graph, error) {
	if b.frozen {
		return nil, ErrFrozen
	}
	if err := b.g.detectCycles(); err != nil {
		return nil, err
	}
	b.frozen = true
	return b.g, nil
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Input returns the Input proxy.
func (g *Graph) Input() Node { return *g.nodes[InputID] }

// Output returns the Output proxy.
func (g *Graph) Output() Node { return *g.nodes[OutputID] }

// Node returns the node with the given ID and true, or false if not found.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns all nodes in insertion order, proxies first.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, len(g.order))
	for i, id := range g.order {
		nodes[i] = *g.nodes[id]
	}
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// NodeCount returns the number of nodes, including both proxies.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Inbound returns the edge feeding port of node id, if any.
func (g *Graph) Inbound(id, port string) (Edge, bool) {
	e, ok := g.inbound[portKey{id, port}]
	return e, ok
}

// InboundEdges returns every edge entering node id, ordered by port name.
func (g *Graph) InboundEdges(id string) []Edge {
	var in []Edge
	for k, e := range g.inbound {
		if k.node == id {
			in = append(in, e)
		}
	}
	slices.SortFunc(in, func(a, b Edge) int {
		switch {
		case a.Port < b.Port:
			return -1
		case a.Port > b.Port:
			return 1
		}
		return 0
	})
	return in
}

// Outbound returns the edges leaving node id in insertion order.
func (g *Graph) Outbound(id string) []Edge { return slices.Clone(g.outgoing[id]) }

// MainChain returns the node IDs along chain edges starting at Input, in
// order. The walk stops at the first node without an outgoing chain edge,
// which is Output for every assembled graph.
func (g *Graph) MainChain() []string {
	chain := []string{InputID}
	seen := map[string]bool{InputID: true}
	for cur := InputID; ; {
		i := slices.IndexFunc(g.outgoing[cur], isChain)
		if i < 0 {
			return chain
		}
		cur = g.outgoing[cur][i].To
		if seen[cur] {
			return chain
		}
		seen[cur] = true
		chain = append(chain, cur)
	}
}

// OutputReachableFromInput reports whether the main chain from Input
// terminates at Output.
func (g *Graph) OutputReachableFromInput() bool {
	chain := g.MainChain()
	return chain[len(chain)-1] == OutputID
}

// TopologicalOrder returns all node IDs so that every edge points forward.
// Ties are broken by insertion order, so the result is deterministic.
func (g *Graph) TopologicalOrder() []string {
	indeg := make(map[string]int, len(g.nodes))
	for _, e := range g.edges {
		indeg[e.To]++
	}
	var ready, out []string
	for _, id := range g.order {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}
	pos := make(map[string]int, len(g.order))
	for i, id := range g.order {
		pos[id] = i
	}
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, e := range g.outgoing[id] {
			indeg[e.To]--
			if indeg[e.To] == 0 {
				ready = append(ready, e.To)
				slices.SortFunc(ready, func(a, b string) int { return pos[a] - pos[b] })
			}
		}
	}
	return out
}

func (g *Graph) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, e := range g.outgoing[id] {
			switch color[e.To] {
			case white:
				dfs(e.To)
			case gray:
				hasCycle = true
			}
			if hasCycle {
				return
			}
		}
		color[id] = black
	}

	for _, id := range g.order {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}

// Property returns the current value of a node property.
func (g *Graph) Property(id, name string) (cty.Value, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.props[id][name]
	return v, ok
}

// Properties returns a copy of a node's property map, or nil if the node
// does not exist.
func (g *Graph) Properties(id string) map[string]cty.Value {
	g.mu.RLock()
	defer g.mu.RUnlock()
	props, ok := g.props[id]
	if !ok {
		return nil
	}
	return maps.Clone(props)
}

// HasProperty reports whether node id exists and its kind declares name.
func (g *Graph) HasProperty(id, name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasProperty(id, name)
}

func (g *Graph) hasProperty(id, name string) bool {
	_, ok := g.props[id][name]
	return ok
}

// SetProperty writes one property value. See [Graph.SetProperties].
func (g *Graph) SetProperty(id, name string, v cty.Value) error {
	return g.SetProperties(Assignment{Node: id, Property: name, Value: v})
}

// SetProperties writes a batch of property values atomically: every
// assignment is checked before any is written, and readers never observe a
// partially applied batch. It returns ErrUnknownNode, ErrUnknownProperty or
// ErrSealedNode without writing anything if any assignment is invalid.
func (g *Graph) SetProperties(batch ...Assignment) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range batch {
		n, ok := g.nodes[a.Node]
		if !ok {
			return ErrUnknownNode
		}
		if n.IsSealed() {
			return ErrSealedNode
		}
		if !g.hasProperty(a.Node, a.Property) {
			return ErrUnknownProperty
		}
	}
	for _, a := range batch {
		g.props[a.Node][a.Property] = a.Value
	}
	return nil
}

// NodeIDs extracts the ID from each node in a slice.
func NodeIDs(nodes []Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
