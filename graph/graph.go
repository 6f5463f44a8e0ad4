// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package graph is the audio graph orchestrator: it owns the node arena and
// edge topology, validates wiring before activation, and drives the
// pull-based processing loop that moves buffers from sources through
// processors into sinks.
//
// One graph executes on one goroutine, the owning session's, so node
// order is deterministic and no cross-node locking exists. Independent
// graphs (one per recording session) share nothing mutable.
package graph

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
	"github.com/rapidaai/audiograph/processors"
	"github.com/rapidaai/audiograph/sinks"
	"github.com/rapidaai/audiograph/sources"
)

// State is the graph lifecycle. Structural mutation is legal only in
// StateIdle. StateError is terminal: tear the graph down and rebuild.
type State uint8

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// maxDrainPasses bounds the stop-time drain loop regardless of topology.
const maxDrainPasses = 64

// Option configures a Graph.
type Option func(*Graph)

// WithQueueCapacity sets the per-edge bounded queue depth.
func WithQueueCapacity(capacity int) Option {
	return func(g *Graph) {
		if capacity > 0 {
			g.queueCapacity = capacity
		}
	}
}

// WithOverflowPolicy sets what full edge queues do with incoming buffers.
func WithOverflowPolicy(policy OverflowPolicy) Option {
	return func(g *Graph) { g.policy = policy }
}

// Graph owns nodes, edges and per-edge queues.
type Graph struct {
	mu     sync.Mutex
	logger commons.Logger
	id     string

	state  State
	slots  []slot
	queues map[edge]*edgeQueue
	order  []NodeID // topological, computed on Start

	queueCapacity int
	policy        OverflowPolicy

	// queueDrops counts per-producer buffers lost to full edge queues.
	queueDrops map[uint32]uint64
}

// New creates an empty idle graph.
func New(logger commons.Logger, opts ...Option) *Graph {
	g := &Graph{
		logger:        logger,
		id:            uuid.NewString(),
		queues:        make(map[edge]*edgeQueue),
		queueCapacity: DefaultQueueCapacity,
		policy:        DropNewest,
		queueDrops:    make(map[uint32]uint64),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the graph's instance identity used in logs.
func (g *Graph) ID() string { return g.id }

// State returns the current lifecycle state.
func (g *Graph) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsActive reports whether ProcessOnce may be called.
func (g *Graph) IsActive() bool {
	return g.State() == StateActive
}

// ============================================================================
// Structural mutation (Idle only)
// ============================================================================

func (g *Graph) addNode(op string, populate func(*slot)) (NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateIdle {
		return NodeID{}, graphErr(op, ErrNotIdle)
	}

	// Reuse the first free slot; its generation was bumped at removal.
	for i := range g.slots {
		if !g.slots[i].occupied {
			populate(&g.slots[i])
			g.slots[i].occupied = true
			g.slots[i].inputs = nil
			g.slots[i].outputs = nil
			return NodeID{index: uint32(i), generation: g.slots[i].generation}, nil
		}
	}
	g.slots = append(g.slots, slot{})
	i := len(g.slots) - 1
	populate(&g.slots[i])
	g.slots[i].occupied = true
	return NodeID{index: uint32(i), generation: 0}, nil
}

// AddSource registers a producer node.
func (g *Graph) AddSource(src sources.AudioSource) (NodeID, error) {
	return g.addNode("add_source", func(s *slot) {
		s.kind = KindSource
		s.source = src
		s.processor = nil
		s.sink = nil
	})
}

// AddProcessor registers a transform node.
func (g *Graph) AddProcessor(p processors.AudioProcessor) (NodeID, error) {
	return g.addNode("add_processor", func(s *slot) {
		s.kind = KindProcessor
		s.processor = p
		s.source = nil
		s.sink = nil
	})
}

// AddSink registers a consumer node.
func (g *Graph) AddSink(sk sinks.AudioSink) (NodeID, error) {
	return g.addNode("add_sink", func(s *slot) {
		s.kind = KindSink
		s.sink = sk
		s.source = nil
		s.processor = nil
	})
}

// Remove detaches a node and all its edges, invalidating its NodeID.
func (g *Graph) Remove(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateIdle {
		return graphErr("remove", ErrNotIdle)
	}
	sl, err := g.slot(id)
	if err != nil {
		return graphErr("remove", err)
	}

	for _, from := range sl.inputs {
		if upstream, err := g.slot(from); err == nil {
			upstream.outputs = removeID(upstream.outputs, id)
		}
		delete(g.queues, edge{from: from, to: id})
	}
	for _, to := range sl.outputs {
		if downstream, err := g.slot(to); err == nil {
			downstream.inputs = removeID(downstream.inputs, id)
		}
		delete(g.queues, edge{from: id, to: to})
	}

	// Bump the generation so the freed slot can be reused without the old
	// handle ever resolving again.
	*sl = slot{generation: sl.generation + 1}
	delete(g.queueDrops, id.index)
	return nil
}

// Connect adds a directed edge. Sources cannot be targets, sinks cannot be
// origins, and duplicate or self edges are rejected.
func (g *Graph) Connect(from, to NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateIdle {
		return graphErr("connect", ErrNotIdle)
	}
	src, err := g.slot(from)
	if err != nil {
		return graphErr("connect", err)
	}
	dst, err := g.slot(to)
	if err != nil {
		return graphErr("connect", err)
	}
	if from == to || src.kind == KindSink || dst.kind == KindSource {
		return graphErr("connect", ErrInvalidEdge)
	}
	for _, existing := range src.outputs {
		if existing == to {
			return graphErr("connect", ErrDuplicateEdge)
		}
	}

	src.outputs = append(src.outputs, to)
	dst.inputs = append(dst.inputs, from)
	return nil
}

// Disconnect removes a directed edge.
func (g *Graph) Disconnect(from, to NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateIdle {
		return graphErr("disconnect", ErrNotIdle)
	}
	src, err := g.slot(from)
	if err != nil {
		return graphErr("disconnect", err)
	}
	dst, err := g.slot(to)
	if err != nil {
		return graphErr("disconnect", err)
	}
	found := false
	for _, existing := range src.outputs {
		if existing == to {
			found = true
		}
	}
	if !found {
		return graphErr("disconnect", ErrInvalidEdge)
	}
	src.outputs = removeID(src.outputs, to)
	dst.inputs = removeID(dst.inputs, from)
	delete(g.queues, edge{from: from, to: to})
	return nil
}

func (g *Graph) slot(id NodeID) (*slot, error) {
	if int(id.index) >= len(g.slots) {
		return nil, ErrStaleNode
	}
	sl := &g.slots[id.index]
	if !sl.occupied || sl.generation != id.generation {
		return nil, ErrStaleNode
	}
	return sl, nil
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// ============================================================================
// Validation
// ============================================================================

// Validate checks the topology: at least one source and sink, no cycles,
// and every node on a source-to-sink path. Structural errors surface here
// and from Start, never from ProcessOnce.
func (g *Graph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.validate()
	return err
}

func (g *Graph) validate() ([]NodeID, error) {
	var sourceIDs, sinkIDs []NodeID
	var all []NodeID
	for i := range g.slots {
		if !g.slots[i].occupied {
			continue
		}
		id := NodeID{index: uint32(i), generation: g.slots[i].generation}
		all = append(all, id)
		switch g.slots[i].kind {
		case KindSource:
			sourceIDs = append(sourceIDs, id)
		case KindSink:
			sinkIDs = append(sinkIDs, id)
		}
	}
	if len(sourceIDs) == 0 {
		return nil, graphErr("validate", ErrNoSource)
	}
	if len(sinkIDs) == 0 {
		return nil, graphErr("validate", ErrNoSink)
	}

	// Cycle detection: DFS coloring. Gray on the stack, black when done;
	// reaching a gray node closes a cycle.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[NodeID]int, len(all))
	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		color[id] = gray
		sl, _ := g.slot(id)
		for _, next := range sl.outputs {
			switch color[next] {
			case gray:
				return false
			case white:
				if !visit(next) {
					return false
				}
			}
		}
		color[id] = black
		return true
	}
	for _, id := range all {
		if color[id] == white && !visit(id) {
			return nil, graphErr("validate", ErrCycleDetected)
		}
	}

	// Reachability: forward from sources, backward from sinks. A node off
	// either sweep is an orphan.
	fromSources := g.sweep(sourceIDs, func(sl *slot) []NodeID { return sl.outputs })
	toSinks := g.sweep(sinkIDs, func(sl *slot) []NodeID { return sl.inputs })
	for _, id := range all {
		if !fromSources[id] || !toSinks[id] {
			return nil, graphErr("validate", ErrUnreachableNode)
		}
	}

	// Kahn's algorithm for the execution order. Cycles were rejected above,
	// so every node must drain; anything left is a defect in the bookkeeping.
	indegree := make(map[NodeID]int, len(all))
	for _, id := range all {
		sl, _ := g.slot(id)
		for _, next := range sl.outputs {
			indegree[next]++
		}
	}
	var frontier []NodeID
	for _, id := range all {
		if indegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}
	order := make([]NodeID, 0, len(all))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)
		sl, _ := g.slot(id)
		for _, next := range sl.outputs {
			indegree[next]--
			if indegree[next] == 0 {
				frontier = append(frontier, next)
			}
		}
	}
	if len(order) != len(all) {
		return nil, graphErr("validate", ErrCycleDetected)
	}
	return order, nil
}

// sweep is a BFS over the given neighbor direction.
func (g *Graph) sweep(seeds []NodeID, neighbors func(*slot) []NodeID) map[NodeID]bool {
	seen := make(map[NodeID]bool, len(g.slots))
	queue := append([]NodeID(nil), seeds...)
	for _, id := range seeds {
		seen[id] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sl, err := g.slot(id)
		if err != nil {
			continue
		}
		for _, next := range neighbors(sl) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// ============================================================================
// Lifecycle
// ============================================================================

// Start validates the topology, builds the edge queues, starts every source
// and activates the graph. Any failure is terminal for this instance.
func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateIdle {
		return graphErr("start", ErrNotIdle)
	}

	order, err := g.validate()
	if err != nil {
		return err
	}
	g.state = StateStarting
	g.order = order

	g.queues = make(map[edge]*edgeQueue)
	for _, id := range order {
		sl, _ := g.slot(id)
		for _, to := range sl.outputs {
			g.queues[edge{from: id, to: to}] = newEdgeQueue(g.queueCapacity, g.policy)
		}
	}

	started := make([]sources.AudioSource, 0)
	for _, id := range order {
		sl, _ := g.slot(id)
		if sl.kind != KindSource {
			continue
		}
		if err := sl.source.Start(); err != nil {
			g.logger.Errorw("source start failed, graph unusable",
				"graph", g.id, "node", id.String(), "error", err)
			for _, src := range started {
				if stopErr := src.Stop(); stopErr != nil {
					g.logger.Warnw("source stop during failed start",
						"graph", g.id, "error", stopErr)
				}
			}
			g.state = StateError
			return err
		}
		started = append(started, sl.source)
	}

	g.state = StateActive
	g.logger.Infow("graph active", "graph", g.id, "nodes", len(order), "edges", len(g.queues))
	return nil
}

// ProcessOnce runs one cooperative tick: every node in topological order,
// producers strictly before their consumers. A node failure aborts the tick
// and moves the graph to the terminal error state; queued buffers survive
// and are reported via Stats.
func (g *Graph) ProcessOnce() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateActive {
		return graphErr("process", ErrNotActive)
	}
	if err := g.tick(false); err != nil {
		g.state = StateError
		g.logger.Errorw("tick aborted", "graph", g.id, "error", err)
		return err
	}
	return nil
}

// tick walks the topological order once. In drain mode sources are skipped:
// they are already stopped and only in-flight buffers move.
func (g *Graph) tick(drain bool) error {
	for _, id := range g.order {
		sl, err := g.slot(id)
		if err != nil {
			return graphErr("tick", err)
		}
		switch sl.kind {
		case KindSource:
			if drain {
				continue
			}
			// One buffer per tick. Device rings absorb delivery bursts and
			// charge sustained excess to their overrun counter.
			buf, err := sl.source.Read()
			if err != nil {
				return err
			}
			if buf != nil {
				g.fanOut(id, sl, buf)
			}

		case KindProcessor:
			// A processor stalls when any input queue is empty; that is the
			// backpressure mechanism, not an error.
			ready := true
			for _, from := range sl.inputs {
				if g.queues[edge{from: from, to: id}].len() == 0 {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			inputs := make([]*audio.Buffer, len(sl.inputs))
			for i, from := range sl.inputs {
				inputs[i] = g.queues[edge{from: from, to: id}].pop()
			}
			out, err := sl.processor.Process(inputs)
			if err != nil {
				return err
			}
			if out != nil {
				g.fanOut(id, sl, out)
			}

		case KindSink:
			for _, from := range sl.inputs {
				q := g.queues[edge{from: from, to: id}]
				for buf := q.pop(); buf != nil; buf = q.pop() {
					if err := sl.sink.Write(buf); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// fanOut pushes one buffer to every outgoing edge queue. The buffer is
// shared, not copied; a full queue applies the overflow policy and the drop
// is charged to the producing node.
func (g *Graph) fanOut(id NodeID, sl *slot, buf *audio.Buffer) {
	for _, to := range sl.outputs {
		if g.queues[edge{from: id, to: to}].push(buf) {
			g.queueDrops[id.index]++
		}
	}
}

// Stop halts sources, drains in-flight buffers through the remaining
// nodes, then flushes and closes sinks. From the terminal error state it
// performs best-effort teardown but the graph stays unusable.
func (g *Graph) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	wasError := g.state == StateError
	if g.state != StateActive && !wasError {
		return graphErr("stop", ErrNotActive)
	}
	if !wasError {
		g.state = StateStopping
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, id := range g.order {
		sl, err := g.slot(id)
		if err != nil || sl.kind != KindSource {
			continue
		}
		record(sl.source.Stop())
	}

	// Drain queued buffers, flush internal processor state (look-ahead
	// windows, resampler tails), and drain again so the flushed buffers
	// travel the rest of the way to the sinks. Stacked stateful processors
	// can re-arm on a flushed upstream buffer, so iterate a few rounds.
	if !wasError {
		for round := 0; round < 3; round++ {
			record(g.drainQueues())
			record(g.flushProcessors())
		}
		record(g.drainQueues())
	}

	for _, id := range g.order {
		sl, err := g.slot(id)
		if err != nil || sl.kind != KindSink {
			continue
		}
		record(sl.sink.Flush())
		record(sl.sink.Close())
	}

	if wasError || firstErr != nil {
		g.state = StateError
		g.logger.Warnw("graph torn down with error", "graph", g.id, "error", firstErr)
		return firstErr
	}
	g.queues = make(map[edge]*edgeQueue)
	g.order = nil
	g.state = StateIdle
	g.logger.Infow("graph stopped", "graph", g.id)
	return nil
}

// flusher is implemented by processors holding internal buffered state, such
// as look-ahead windows or resampler tails.
type flusher interface {
	Flush() (*audio.Buffer, error)
}

// flushProcessors empties internal processor state into the edge queues, in
// topological order so upstream tails feed downstream flushes.
func (g *Graph) flushProcessors() error {
	for _, id := range g.order {
		sl, err := g.slot(id)
		if err != nil || sl.kind != KindProcessor {
			continue
		}
		f, ok := sl.processor.(flusher)
		if !ok {
			continue
		}
		buf, err := f.Flush()
		if err != nil {
			return err
		}
		if buf != nil {
			g.fanOut(id, sl, buf)
		}
	}
	return nil
}

// drainQueues runs drain ticks to a fixpoint with a hard cap on passes.
func (g *Graph) drainQueues() error {
	for pass := 0; pass < maxDrainPasses && g.queuedBuffers() > 0; pass++ {
		if err := g.tick(true); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) queuedBuffers() uint64 {
	var total uint64
	for _, q := range g.queues {
		total += uint64(q.len())
	}
	return total
}

// ============================================================================
// Stats
// ============================================================================

// Stats snapshots per-node counters for health monitoring.
func (g *Graph) Stats() map[NodeID]NodeStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[NodeID]NodeStats)
	for i := range g.slots {
		if !g.slots[i].occupied {
			continue
		}
		id := NodeID{index: uint32(i), generation: g.slots[i].generation}
		sl := &g.slots[i]

		stats := NodeStats{Kind: sl.kind, QueueDrops: g.queueDrops[id.index]}
		switch sl.kind {
		case KindSource:
			s := sl.source.Stats()
			stats.Source = &s
		case KindProcessor:
			s := sl.processor.Stats()
			stats.Processor = &s
		case KindSink:
			s := sl.sink.Stats()
			stats.Sink = &s
		}
		for _, to := range sl.outputs {
			if q, ok := g.queues[edge{from: id, to: to}]; ok {
				stats.Queued += uint64(q.len())
			}
		}
		out[id] = stats
	}
	return out
}
