package timesync

import (
	"reflect"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

// defaultPathCacheSize bounds the composed paths kept per graph.
const defaultPathCacheSize = 1024

// DiscoveredByClockLink marks identity edges the graph inserts on its own
// between comparable node identities, as opposed to edges a rule discovered.
const DiscoveredByClockLink = "clocktype"

// edgeKey identifies one directed edge.
type edgeKey struct {
	source EpochClockID
	target EpochClockID
}

// edge is a stored mapping plus the rule that produced it.
type edge struct {
	mapping      TimeMapping
	discoveredBy string
}

// Graph is the time synchronization graph: nodes are (device, epoch, clock)
// identities, edges are linear mappings. Every edge is stored in both
// directions so conversion never needs to invert on the fly. All methods are
// safe for concurrent use.
//
// Structure:
//
//	nodes  set of known identities
//	adj    out-neighbors per node, in edge insertion order
//	edges  directed mapping per (source, target) pair
//	cache  LRU of composed shortest paths, invalidated on mutation
type Graph struct {
	mu    sync.RWMutex
	nodes map[EpochClockID]struct{}
	adj   map[EpochClockID][]EpochClockID
	edges map[edgeKey]edge

	rules  []Rule
	cache  *pathCache
	logger *zap.SugaredLogger
}

// NewGraph builds an empty graph with the given discovery rule set. Rules
// are applied in the given order; the first match wins. A nil logger
// disables logging.
func NewGraph(rules []Rule, log *zap.SugaredLogger) *Graph {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Graph{
		nodes:  make(map[EpochClockID]struct{}),
		adj:    make(map[EpochClockID][]EpochClockID),
		edges:  make(map[edgeKey]edge),
		rules:  append([]Rule(nil), rules...),
		cache:  newPathCache(defaultPathCacheSize),
		logger: log,
	}
}

// Rules returns the discovery rule set in application order.
func (g *Graph) Rules() []Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Rule(nil), g.rules...)
}

// AddRule appends a discovery rule. A rule whose name and spec equal an
// already registered rule's is dropped, so reloading a session never
// doubles the rule list. Nil rules are ignored.
func (g *Graph) AddRule(r Rule) {
	if r == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	spec := r.Spec()
	for _, have := range g.rules {
		if have.Name() == r.Name() && reflect.DeepEqual(have.Spec(), spec) {
			return
		}
	}
	g.rules = append(g.rules, r)
}

// AddNode registers a clock identity. Identities comparable to existing
// nodes are linked with identity edges immediately, so UTC on one device
// reaches UTC on another without any rule firing. Adding a known node is a
// no-op.
func (g *Graph) AddNode(id EpochClockID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addNodeLocked(id)
}

// AddEpoch registers every node identity an epoch contributes.
func (g *Graph) AddEpoch(meta EpochMeta) error {
	for _, id := range meta.NodeIDs() {
		if err := g.AddNode(id); err != nil {
			return err
		}
	}
	return nil
}

// addNodeLocked inserts the node and auto-links it to comparable existing
// nodes. Caller must hold g.mu for writing.
func (g *Graph) addNodeLocked(id EpochClockID) error {
	if _, ok := g.nodes[id]; ok {
		return nil
	}
	g.nodes[id] = struct{}{}

	// Sorted order keeps adjacency lists, and with them BFS tie-breaks,
	// independent of map iteration.
	linked := 0
	for _, other := range g.sortedNodesLocked() {
		if other == id || !id.Comparable(other) {
			continue
		}
		m, err := IdentityMapping(id, other)
		if err != nil {
			return err
		}
		if _, err := g.addEdgeLocked(m, DiscoveredByClockLink); err != nil {
			return err
		}
		linked++
	}
	if linked > 0 {
		g.cache.bump()
	}
	return nil
}

// AddEdge inserts a mapping and its inverse. Adding an edge equivalent to an
// existing one is a no-op; a materially different mapping between the same
// pair is rejected with a *ConflictingMappingError and the graph keeps the
// first mapping it saw. discoveredBy names the rule (or actor) the edge came
// from and is carried into edge records.
func (g *Graph) AddEdge(m TimeMapping, discoveredBy string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Source == m.Target {
		// Self-conversion needs no stored edge.
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	inserted, err := g.addEdgeLocked(m, discoveredBy)
	if err != nil {
		return err
	}
	if inserted {
		g.cache.bump()
		g.logger.Debugw("Sync edge added",
			"symbol", sym.Map,
			"source", m.Source.String(),
			"target", m.Target.String(),
			"scale", m.Scale,
			"offset", m.Offset,
			"rule", discoveredBy,
		)
	}
	return nil
}

// addEdgeLocked ensures both endpoint nodes, then checks both orientations
// against existing edges before touching either, so a rejected edge leaves
// the graph exactly as it was. Caller must hold g.mu for writing.
func (g *Graph) addEdgeLocked(m TimeMapping, discoveredBy string) (bool, error) {
	inverse, err := m.Invert()
	if err != nil {
		return false, err
	}
	if err := g.addNodeLocked(m.Source); err != nil {
		return false, err
	}
	if err := g.addNodeLocked(m.Target); err != nil {
		return false, err
	}

	forwardKey := edgeKey{source: m.Source, target: m.Target}
	inverseKey := edgeKey{source: m.Target, target: m.Source}
	if existing, ok := g.edges[forwardKey]; ok {
		if existing.mapping.Equivalent(m) {
			return false, nil
		}
		return false, &ConflictingMappingError{Existing: existing.mapping, Proposed: m}
	}
	if existing, ok := g.edges[inverseKey]; ok {
		if existing.mapping.Equivalent(inverse) {
			return false, nil
		}
		return false, &ConflictingMappingError{Existing: existing.mapping, Proposed: inverse}
	}

	g.edges[forwardKey] = edge{mapping: m, discoveredBy: discoveredBy}
	g.adj[m.Source] = append(g.adj[m.Source], m.Target)
	g.edges[inverseKey] = edge{mapping: inverse, discoveredBy: discoveredBy}
	g.adj[m.Target] = append(g.adj[m.Target], m.Source)
	return true, nil
}

// Discover runs the rule set over an epoch pair in registration order and
// adds the first mapping any rule produces. It returns the mapping and the
// rule's name, or a zero mapping and empty name when nothing matched; no
// match is not an error. A produced mapping that contradicts an existing
// edge surfaces as a *ConflictingMappingError.
func (g *Graph) Discover(a, b EpochMeta) (TimeMapping, string, error) {
	for _, rule := range g.Rules() {
		if !rule.Eligible(a, b) {
			continue
		}
		m, ok := rule.Evaluate(a, b)
		if !ok {
			continue
		}
		if err := g.AddEdge(m, rule.Name()); err != nil {
			return TimeMapping{}, "", err
		}
		g.logger.Infow("Time mapping discovered",
			"symbol", sym.Time,
			"rule", rule.Name(),
			"source", m.Source.String(),
			"target", m.Target.String(),
			"scale", m.Scale,
			"offset", m.Offset,
		)
		return m, rule.Name(), nil
	}
	return TimeMapping{}, "", nil
}

// Mapping returns the composed mapping along the shortest edge path between
// two identities. Among equal-length paths the earliest-registered edges
// win, so repeated calls on an unchanged graph return identical mappings.
// Self-mapping succeeds on any graph; otherwise both nodes must be connected
// or ErrNoPathFound is returned.
func (g *Graph) Mapping(source, target EpochClockID) (TimeMapping, error) {
	if err := source.Validate(); err != nil {
		return TimeMapping{}, err
	}
	if err := target.Validate(); err != nil {
		return TimeMapping{}, err
	}
	if source == target {
		return TimeMapping{Source: source, Target: target, Kind: KindLinear, Scale: 1, Offset: 0}, nil
	}

	key := edgeKey{source: source, target: target}
	g.mu.RLock()
	if p, ok := g.cache.get(key); ok {
		g.mu.RUnlock()
		return p.mapping, nil
	}
	gen := g.cache.generation()
	path, found := g.shortestPathLocked(source, target)
	if !found {
		g.mu.RUnlock()
		return TimeMapping{}, errors.Wrapf(ErrNoPathFound, "%s -> %s", source, target)
	}
	m, err := g.composePathLocked(path)
	g.mu.RUnlock()
	if err != nil {
		return TimeMapping{}, err
	}
	g.cache.put(key, cachedPath{mapping: m, via: path}, gen)
	return m, nil
}

// Convert carries a time reference onto another clock identity.
func (g *Graph) Convert(ref TimeReference, target EpochClockID) (TimeReference, error) {
	checked, err := NewTimeReference(ref.ID, ref.Time)
	if err != nil {
		return TimeReference{}, err
	}
	m, err := g.Mapping(checked.ID, target)
	if err != nil {
		return TimeReference{}, err
	}
	return TimeReference{ID: target, Time: m.Apply(checked.Time)}, nil
}

// shortestPathLocked breadth-first searches by edge count. Neighbors are
// visited in insertion order, which fixes the winner among equal-length
// paths. Caller must hold g.mu.
func (g *Graph) shortestPathLocked(source, target EpochClockID) ([]EpochClockID, bool) {
	if _, ok := g.nodes[source]; !ok {
		return nil, false
	}
	if _, ok := g.nodes[target]; !ok {
		return nil, false
	}

	parent := map[EpochClockID]EpochClockID{source: source}
	queue := []EpochClockID{source}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.adj[current] {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current
			if next == target {
				// Walk parents back to the source.
				path := []EpochClockID{target}
				for at := current; ; at = parent[at] {
					path = append(path, at)
					if at == source {
						break
					}
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// composePathLocked folds the mappings along a node path into one. Caller
// must hold g.mu; the path must contain at least two nodes.
func (g *Graph) composePathLocked(path []EpochClockID) (TimeMapping, error) {
	m := g.edges[edgeKey{source: path[0], target: path[1]}].mapping
	for i := 1; i < len(path)-1; i++ {
		next := g.edges[edgeKey{source: path[i], target: path[i+1]}].mapping
		composed, err := m.Compose(next)
		if err != nil {
			return TimeMapping{}, err
		}
		m = composed
	}
	return m, nil
}

// InvalidateNode removes a node, every edge touching it, and every cached
// path that traverses it. Unknown nodes are a no-op. Devices whose epoch
// metadata changed call this before re-running discovery.
func (g *Graph) InvalidateNode(id EpochClockID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)
	delete(g.adj, id)
	for node, neighbors := range g.adj {
		kept := neighbors[:0]
		for _, n := range neighbors {
			if n != id {
				kept = append(kept, n)
			}
		}
		g.adj[node] = kept
	}
	for k := range g.edges {
		if k.source == id || k.target == id {
			delete(g.edges, k)
		}
	}
	g.cache.dropThrough(id)
	g.logger.Debugw("Sync node invalidated",
		"symbol", sym.Time,
		"device", id.Device,
		"epoch", id.Epoch,
		"clock", string(id.Clock),
	)
}

// Clear drops all nodes and edges. The rule set is kept.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[EpochClockID]struct{})
	g.adj = make(map[EpochClockID][]EpochClockID)
	g.edges = make(map[edgeKey]edge)
	g.cache.bump()
}

// Records returns every directed edge in a stable (source, target) order.
// Loading the records into a fresh graph rebuilds an equivalent graph.
func (g *Graph) Records() []EdgeRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	records := make([]EdgeRecord, 0, len(g.edges))
	for _, e := range g.edges {
		records = append(records, NewEdgeRecord(e.mapping, e.discoveredBy))
	}
	sort.Slice(records, func(i, j int) bool {
		si, sj := records[i].Source.String(), records[j].Source.String()
		if si != sj {
			return si < sj
		}
		return records[i].Target.String() < records[j].Target.String()
	})
	return records
}

// LoadRecords adds every record as an edge. Records equivalent to existing
// edges are no-ops, so loading is idempotent; a record contradicting an
// existing edge aborts with the conflict.
func (g *Graph) LoadRecords(records []EdgeRecord) error {
	for _, rec := range records {
		m, err := rec.Mapping()
		if err != nil {
			return errors.Wrapf(err, "edge record %s -> %s", rec.Source, rec.Target)
		}
		if err := g.AddEdge(m, rec.DiscoveredBy); err != nil {
			return err
		}
	}
	return nil
}

// Nodes returns all node identities sorted by their string form.
func (g *Graph) Nodes() []EpochClockID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedNodesLocked()
}

// HasNode reports whether an identity is registered.
func (g *Graph) HasNode(id EpochClockID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of registered identities.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Edge returns the stored mapping and discovering rule for a directed pair.
func (g *Graph) Edge(source, target EpochClockID) (TimeMapping, string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[edgeKey{source: source, target: target}]
	if !ok {
		return TimeMapping{}, "", false
	}
	return e.mapping, e.discoveredBy, true
}

// Neighbors returns a node's out-neighbors in edge insertion order.
func (g *Graph) Neighbors(id EpochClockID) []EpochClockID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]EpochClockID(nil), g.adj[id]...)
}

// sortedNodesLocked lists nodes ordered by string form. Caller must hold
// g.mu.
func (g *Graph) sortedNodesLocked() []EpochClockID {
	nodes := make([]EpochClockID, 0, len(g.nodes))
	for id := range g.nodes {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].String() < nodes[j].String()
	})
	return nodes
}

// pathCache memoizes composed shortest paths. A generation counter guards
// against a lookup that started before a mutation inserting its result after
// the mutation invalidated the cache.
type pathCache struct {
	mu  sync.Mutex
	gen uint64
	lru *lru.Cache
}

// cachedPath keeps the composed mapping together with the nodes the path
// traverses, so invalidating one node can purge exactly the paths through
// it.
type cachedPath struct {
	mapping TimeMapping
	via     []EpochClockID
}

func newPathCache(size int) *pathCache {
	cache, err := lru.New(size)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &pathCache{lru: cache}
}

func (c *pathCache) get(k edgeKey) (cachedPath, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(k)
	if !ok {
		return cachedPath{}, false
	}
	return v.(cachedPath), true
}

func (c *pathCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// put stores a path computed at generation gen, dropping it silently when a
// mutation has advanced the cache since.
func (c *pathCache) put(k edgeKey, p cachedPath, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.lru.Add(k, p)
}

// bump invalidates the whole cache.
func (c *pathCache) bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.lru.Purge()
}

// dropThrough removes cached paths that start at, end at, or pass through a
// node.
func (c *pathCache) dropThrough(id EpochClockID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, k := range c.lru.Keys() {
		key := k.(edgeKey)
		if key.source == id || key.target == id {
			c.lru.Remove(k)
			continue
		}
		v, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		for _, n := range v.(cachedPath).via {
			if n == id {
				c.lru.Remove(k)
				break
			}
		}
	}
}
