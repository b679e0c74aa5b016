package geo

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/mihir-logicrays/drive-it/internal/types"
)

var (
	ErrNotPolygon = errors.New("geometry is not a polygon")
	ErrNotPoint   = errors.New("geometry is not a point")
	ErrEmptyRing  = errors.New("polygon ring needs at least three points")
)

// Polygon is a geofence area. Coordinates follow GeoJSON order (lng, lat).
type Polygon struct {
	poly *geom.Polygon
}

// NewPolygon builds a single-ring polygon from its outer boundary. The ring
// is closed automatically when the last point differs from the first.
func NewPolygon(ring []types.Point) (*Polygon, error) {
	if len(ring) < 3 {
		return nil, ErrEmptyRing
	}
	coords := make([]geom.Coord, 0, len(ring)+1)
	for _, p := range ring {
		coords = append(coords, geom.Coord{p.Lng, p.Lat})
	}
	if first, last := ring[0], ring[len(ring)-1]; first != last {
		coords = append(coords, geom.Coord{first.Lng, first.Lat})
	}
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return nil, fmt.Errorf("building polygon: %w", err)
	}
	return &Polygon{poly: poly}, nil
}

// ParsePolygon decodes a GeoJSON Polygon geometry, as returned by
// ST_AsGeoJSON on the area geography columns.
func ParsePolygon(raw []byte) (*Polygon, error) {
	var g geom.T
	if err := gjson.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decoding geojson: %w", err)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return nil, ErrNotPolygon
	}
	return &Polygon{poly: poly}, nil
}

// Contains reports whether pt lies strictly inside the polygon. Points on
// the outer boundary or inside (or on the edge of) a hole are outside.
func (p *Polygon) Contains(pt types.Point) bool {
	if p == nil || p.poly == nil || p.poly.NumLinearRings() == 0 {
		return false
	}
	c := geom.Coord{pt.Lng, pt.Lat}
	layout := p.poly.Layout()
	if xy.LocatePointInRing(layout, c, p.poly.LinearRing(0).FlatCoords()) != location.Interior {
		return false
	}
	for i := 1; i < p.poly.NumLinearRings(); i++ {
		if xy.LocatePointInRing(layout, c, p.poly.LinearRing(i).FlatCoords()) != location.Exterior {
			return false
		}
	}
	return true
}

// MarshalJSON renders the polygon back as a GeoJSON geometry.
func (p *Polygon) MarshalJSON() ([]byte, error) {
	if p == nil || p.poly == nil {
		return []byte("null"), nil
	}
	return gjson.Marshal(p.poly)
}

// ParsePoint decodes a GeoJSON Point geometry.
func ParsePoint(raw []byte) (types.Point, error) {
	var g geom.T
	if err := gjson.Unmarshal(raw, &g); err != nil {
		return types.Point{}, fmt.Errorf("decoding geojson: %w", err)
	}
	pt, ok := g.(*geom.Point)
	if !ok || pt.Empty() {
		return types.Point{}, ErrNotPoint
	}
	return types.Point{Lat: pt.Y(), Lng: pt.X()}, nil
}

// PointGeoJSON encodes a coordinate as a GeoJSON Point geometry.
func PointGeoJSON(p types.Point) ([]byte, error) {
	return gjson.Marshal(geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}))
}
