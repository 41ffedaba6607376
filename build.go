package roadgraph

import (
	"fmt"
	"log"
	"math"
)

// buildContext is the single mutable value threaded through all four passes,
// keeping the pipeline's working state off package-level variables so a
// Build call has no hidden global state.
type buildContext struct {
	projector    Projector
	lengthPolicy LengthPolicy

	nTotal uint64

	highwayIdx         *DenseMap
	nextHighwayID      uint32
	intersectionIdx    *DenseMap
	nextIntersectionID uint32

	coords       []Coord // indexed by highway dense id
	vertexCoords []Coord // indexed by intersection dense id
	tally        []uint8 // indexed by intersection dense id
	totalEdges   uint64

	minX, minY int32

	vertices []Vertex
	edges    []Edge
	cursor   []uint32 // per-vertex next free edge slot, avoids rescanning a run to find one

	err error
}

// Build runs the four-pass pipeline over the PBF file at path and returns
// the resulting packed road graph.
func Build(path string, opts ...Option) (*Graph, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return build(NewPBFReader(path), cfg)
}

func build(reader Reader, cfg *config) (*Graph, error) {
	g, ctx, err := buildWithContext(reader, cfg)
	if ctx != nil {
		// The highway-node map is no longer needed once coordinates are
		// resolved; the intersection map is consulted through P4 and is
		// released only now. Kept alive on ctx itself so buildWithContext
		// remains useful for tests that need to resolve an OSM node id to
		// its dense index after the fact.
		ctx.highwayIdx = nil
		ctx.intersectionIdx = nil
	}
	return g, err
}

// buildWithContext runs the pipeline and also returns the buildContext,
// letting tests assert against the dense maps directly (e.g. which
// intersection dense id a given OSM node id was assigned) instead of only
// the final packed Graph.
func buildWithContext(reader Reader, cfg *config) (*Graph, *buildContext, error) {
	ctx := &buildContext{
		projector:    cfg.projector,
		lengthPolicy: cfg.lengthPolicy,
		minX:         math.MaxInt32,
		minY:         math.MaxInt32,
	}

	highwayCap := cfg.highwayCapacityHint
	if highwayCap == 0 {
		// P1: count nodes, sizing the two dense maps before allocating them.
		if err := reader.Run(HandlerSet{OnNode: ctx.countNode}); err != nil {
			return nil, nil, fmt.Errorf("roadgraph: pass1 count: %w", err)
		}
		highwayCap = int(ctx.nTotal)
		log.Printf("roadgraph: pass1 counted %d nodes", ctx.nTotal)
	}
	ctx.highwayIdx = NewDenseMap(highwayCap)
	ctx.intersectionIdx = NewDenseMap(highwayCap / cfg.intersectionDivisor)

	// P2: classify nodes referenced by highway ways into highway/intersection.
	if err := reader.Run(HandlerSet{OnWay: ctx.classifyWay}); err != nil {
		return nil, nil, fmt.Errorf("roadgraph: pass2 classify: %w", err)
	}
	if ctx.err != nil {
		return nil, nil, ctx.err
	}
	log.Printf("roadgraph: pass2 found %d highway nodes, %d intersections",
		ctx.nextHighwayID, ctx.nextIntersectionID)

	ctx.coords = make([]Coord, ctx.nextHighwayID)
	ctx.vertexCoords = make([]Coord, ctx.nextIntersectionID)
	ctx.tally = make([]uint8, ctx.nextIntersectionID)

	// P3: materialize coordinates and tally per-vertex outgoing-edge counts.
	if err := reader.Run(HandlerSet{OnNode: ctx.materializeNode, OnWay: ctx.tallyWay}); err != nil {
		return nil, nil, fmt.Errorf("roadgraph: pass3 materialize: %w", err)
	}
	if ctx.err != nil {
		return nil, nil, ctx.err
	}
	log.Printf("roadgraph: pass3 bounds minX=%d minY=%d, total edges=%d",
		ctx.minX, ctx.minY, ctx.totalEdges)

	ctx.layoutEdges()

	// P4: emit edges into the pre-sized, prefix-summed adjacency.
	if err := reader.Run(HandlerSet{OnWay: ctx.emitWay}); err != nil {
		return nil, nil, fmt.Errorf("roadgraph: pass4 emit: %w", err)
	}
	if ctx.err != nil {
		return nil, nil, ctx.err
	}

	return &Graph{Vertices: ctx.vertices, Edges: ctx.edges}, ctx, nil
}

// countNode is P1's node handler.
func (ctx *buildContext) countNode(id int64, latNano, lonNano int64) {
	ctx.nTotal++
}

// classifyWay is P2's way handler.
func (ctx *buildContext) classifyWay(id int64, deltaRefs []int64, tags TagList, table StringTable) {
	if ctx.err != nil || !isRoutable(tags, table) {
		return
	}
	refs := decodeDeltas(deltaRefs)
	n := len(refs)
	for i, r := range refs {
		isEndpoint := i == 0 || i == n-1
		if isEndpoint || ctx.highwayIdx.Contains(r) {
			if !ctx.intersectionIdx.Contains(r) {
				if ctx.nextIntersectionID == Absent {
					ctx.err = ErrDenseIndexExhausted
					return
				}
				ctx.intersectionIdx.Put(r, ctx.nextIntersectionID)
				ctx.nextIntersectionID++
			}
			// Endpoints also take a highway dense id, so every intersection
			// is a highway node and receives a coordinate in P3.
			if ctx.highwayIdx.Contains(r) {
				continue
			}
		}
		if ctx.nextHighwayID == Absent {
			ctx.err = ErrDenseIndexExhausted
			return
		}
		ctx.highwayIdx.Put(r, ctx.nextHighwayID)
		ctx.nextHighwayID++
	}
}

// materializeNode is half of P3: projects and stores a highway node's
// coordinate, and, when the node is also an intersection, its vertex
// coordinate in the same pass, avoiding a second lookup pass over the
// intersection map.
func (ctx *buildContext) materializeNode(id int64, latNano, lonNano int64) {
	idxH := ctx.highwayIdx.Get(id)
	if idxH == Absent {
		return
	}
	c := ctx.projector.Project(latNano, lonNano)
	ctx.coords[idxH] = c
	if c.X < ctx.minX {
		ctx.minX = c.X
	}
	if c.Y < ctx.minY {
		ctx.minY = c.Y
	}
	if idxV := ctx.intersectionIdx.Get(id); idxV != Absent {
		ctx.vertexCoords[idxV] = c
	}
}

// tallyWay is the other half of P3: counts outgoing edges per intersection
// without writing them.
func (ctx *buildContext) tallyWay(id int64, deltaRefs []int64, tags TagList, table StringTable) {
	if ctx.err != nil || !isRoutable(tags, table) {
		return
	}
	refs := decodeDeltas(deltaRefs)
	n := len(refs)
	if n < 2 {
		return
	}
	idxA := ctx.intersectionIdx.Get(refs[0])
	if idxA == Absent {
		return
	}
	for i := 1; i < n; i++ {
		idxB := ctx.intersectionIdx.Get(refs[i])
		if idxB == Absent {
			continue
		}
		if !ctx.bumpTally(idxA) || !ctx.bumpTally(idxB) {
			return
		}
		ctx.totalEdges += 2
		idxA = idxB
	}
}

func (ctx *buildContext) bumpTally(idx uint32) bool {
	if ctx.tally[idx] == math.MaxUint8 {
		ctx.err = ErrEdgeTallyOverflow
		return false
	}
	ctx.tally[idx]++
	return true
}

// layoutEdges allocates Vertices (with its sentinel at index V) and Edges,
// computing the prefix sum over each vertex's tallied edge count so every
// vertex's outgoing run lands at a fixed, contiguous offset.
func (ctx *buildContext) layoutEdges() {
	v := ctx.nextIntersectionID
	vertices := make([]Vertex, v+1)
	offset := uint32(0)
	for i := uint32(0); i < v; i++ {
		vertices[i] = Vertex{
			X:         ctx.vertexCoords[i].X,
			Y:         ctx.vertexCoords[i].Y,
			FirstEdge: offset,
		}
		offset += uint32(ctx.tally[i])
	}
	vertices[v] = Vertex{FirstEdge: offset}

	cursor := make([]uint32, v)
	for i := uint32(0); i < v; i++ {
		cursor[i] = vertices[i].FirstEdge
	}

	ctx.vertices = vertices
	ctx.edges = make([]Edge, offset)
	ctx.cursor = cursor
}

// emitWay is P4's way handler, mirroring tallyWay but writing edge records.
func (ctx *buildContext) emitWay(id int64, deltaRefs []int64, tags TagList, table StringTable) {
	if ctx.err != nil || !isRoutable(tags, table) {
		return
	}
	refs := decodeDeltas(deltaRefs)
	n := len(refs)
	if n < 2 {
		return
	}
	idxA := ctx.intersectionIdx.Get(refs[0])
	if idxA == Absent {
		return
	}
	for i := 1; i < n; i++ {
		idxB := ctx.intersectionIdx.Get(refs[i])
		if idxB == Absent {
			continue
		}
		ctx.emit(idxA, idxB)
		ctx.emit(idxB, idxA)
		idxA = idxB
	}
}

// emit writes a single directed edge a→b into a's next free slot, advancing
// a's write cursor.
func (ctx *buildContext) emit(a, b uint32) {
	length := uint16(1)
	if ctx.lengthPolicy == EuclideanLength {
		length = euclideanLength(ctx.vertices[a], ctx.vertices[b])
	}
	slot := ctx.cursor[a]
	ctx.edges[slot] = Edge{Target: b, Length: length, Flags: edgeFlagOccupied}
	ctx.cursor[a] = slot + 1
}

func euclideanLength(a, b Vertex) uint16 {
	dx := float64(a.X) - float64(b.X)
	dy := float64(a.Y) - float64(b.Y)
	d := math.Hypot(dx, dy)
	if d > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(d)
}
