package roadgraph

import "errors"

// ErrDenseIndexExhausted is returned by Build when a dense map (highway or
// intersection) would need to assign more than uint32 distinct ids, which
// would collide with the Absent sentinel.
var ErrDenseIndexExhausted = errors.New("roadgraph: dense index exceeds uint32 range")

// ErrEdgeTallyOverflow is returned by Build when a single vertex would
// accumulate more than 255 outgoing edges, the capacity of the 8-bit tally.
// This module refuses rather than silently truncating since urban
// intersections rarely exceed this in practice, and silent truncation
// would corrupt the graph's edge layout.
var ErrEdgeTallyOverflow = errors.New("roadgraph: vertex outgoing-edge count exceeds 255")
