package roadgraph

import "math"

// decPerDeg is the projection's scale from whole degrees to Coord units:
// 1111111.1 * 10, about 1.11e7 units per degree.
const decPerDeg = 1111111.1 * 10

// Coord is a projected node location in decimeters.
type Coord struct {
	X, Y int32
}

// Projector converts an OSM node's nanodegree lat/lon into a projected
// Coord. It is pluggable since the default equirectangular projection's
// pole distortion is a known limitation, and projection is treated as a
// policy rather than a fixed algorithm.
type Projector interface {
	Project(latNano, lonNano int64) Coord
}

// EquirectangularProjector implements an equirectangular projection:
// y = lat*decPerDeg, x = lon*cos(lat_radians)*decPerDeg. Local-accurate;
// distorts near the poles at planet scale.
type EquirectangularProjector struct{}

// Project implements Projector.
func (EquirectangularProjector) Project(latNano, lonNano int64) Coord {
	latDeg := float64(latNano) / 1e9
	lonDeg := float64(lonNano) / 1e9
	latRad := latDeg * math.Pi / 180.0
	y := latDeg * decPerDeg
	x := lonDeg * math.Cos(latRad) * decPerDeg
	return Coord{X: int32(math.Round(x)), Y: int32(math.Round(y))}
}

// InverseEquirectangular undoes EquirectangularProjector.Project, recovering
// approximate lat/lng in degrees from a projected Coord. Used only by the
// export package; the core build never needs to invert its own projection.
func InverseEquirectangular(c Coord) (latDeg, lonDeg float64) {
	latDeg = float64(c.Y) / decPerDeg
	latRad := latDeg * math.Pi / 180.0
	cos := math.Cos(latRad)
	if cos == 0 {
		cos = 1e-9
	}
	lonDeg = float64(c.X) / (decPerDeg * cos)
	return latDeg, lonDeg
}
