package roadgraph

import (
	"encoding/gob"
	"os"
)

// Vertex is a routing-graph node: a road intersection or dead-end. FirstEdge
// is the offset into Graph.Edges where this vertex's outgoing-edge run
// begins; the run ends at the next vertex's FirstEdge.
type Vertex struct {
	X, Y      int32
	FirstEdge uint32
}

// Edge is a directed arc to Target. Length is a provisional unit cost (1 by
// default; see WithLengthPolicy). Flags is nonzero once the slot has been
// written.
type Edge struct {
	Target uint32
	Length uint16
	Flags  uint16
}

const edgeFlagOccupied = 1

// Graph is the read-only, packed routable road graph produced by Build.
// Vertices has length V+1: index V is a sentinel whose FirstEdge equals
// len(Edges), so every real vertex's outgoing run is
// Vertices[v].FirstEdge : Vertices[v+1].FirstEdge.
type Graph struct {
	Vertices []Vertex
	Edges    []Edge
}

// NumVertices returns V, the number of real (non-sentinel) vertices.
func (g *Graph) NumVertices() int {
	if len(g.Vertices) == 0 {
		return 0
	}
	return len(g.Vertices) - 1
}

// EdgesOf returns the outgoing-edge run for vertex v.
func (g *Graph) EdgesOf(v uint32) []Edge {
	return g.Edges[g.Vertices[v].FirstEdge:g.Vertices[v+1].FirstEdge]
}

// Serialize gob-encodes the graph to filePath, returning the create or
// encode error. The file is closed on return; an error from closing it is
// not reported.
func (g *Graph) Serialize(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(g)
}

// Deserialize reads back a Graph previously written by Serialize. No format
// version is recorded; the caller is responsible for matching
// producer/consumer.
func Deserialize(filePath string) (*Graph, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	g := new(Graph)
	if err := gob.NewDecoder(file).Decode(g); err != nil {
		return nil, err
	}
	return g, nil
}
