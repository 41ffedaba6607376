// Package export renders a built roadgraph.Graph to GeoJSON for inspection
// and visualization. It is not part of the core graph-construction engine,
// just a convenience for eyeballing a built graph on a map.
package export

import (
	"os"

	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"
	"github.com/umahmood/haversine"

	"roadgraph"
)

// cellLevel is the level of the S2 covering cell attached to each exported
// edge feature (the cell of the edge's source vertex) as a coarse spatial
// bucket, useful for log sampling or bucketing a built graph by region.
const cellLevel = 10

// ToFeatureCollection renders every edge of g as a GeoJSON LineString
// feature, inverse-projecting each endpoint's decimeter Coord back to
// degrees. Each feature's properties carry the edge's stored Length, its
// real-world haversine distance in meters, and the S2 covering-cell id of
// its source vertex.
func ToFeatureCollection(g *roadgraph.Graph) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for v := uint32(0); v < uint32(g.NumVertices()); v++ {
		src := g.Vertices[v]
		srcLat, srcLon := roadgraph.InverseEquirectangular(roadgraph.Coord{X: src.X, Y: src.Y})
		for _, e := range g.EdgesOf(v) {
			dst := g.Vertices[e.Target]
			dstLat, dstLon := roadgraph.InverseEquirectangular(roadgraph.Coord{X: dst.X, Y: dst.Y})

			line := [][]float64{
				{srcLon, srcLat},
				{dstLon, dstLat},
			}
			feature := geojson.NewLineStringFeature(line)
			feature.Properties["length"] = e.Length
			feature.Properties["distance_m"] = distanceMeters(srcLat, srcLon, dstLat, dstLon)
			feature.Properties["s2_cell"] = uint64(coveringCell(srcLat, srcLon))
			fc.AddFeature(feature)
		}
	}
	return fc
}

// Write renders g and writes it as a GeoJSON file at path.
func Write(g *roadgraph.Graph, path string) error {
	data, err := ToFeatureCollection(g).MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func distanceMeters(latA, lonA, latB, lonB float64) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: latA, Lon: lonA},
		haversine.Coord{Lat: latB, Lon: lonB},
	)
	return km * 1000
}

func coveringCell(lat, lon float64) s2.CellID {
	return s2.CellFromPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))).ID().Parent(cellLevel)
}
