package geo

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mihir-logicrays/drive-it/internal/types"
)

func unitSquare(t *testing.T) *Polygon {
	t.Helper()
	p, err := NewPolygon([]types.Point{
		{Lng: 0, Lat: 0}, {Lng: 0, Lat: 1}, {Lng: 1, Lat: 1}, {Lng: 1, Lat: 0},
	})
	if err != nil {
		t.Fatalf("new polygon: %v", err)
	}
	return p
}

func TestPolygonContains(t *testing.T) {
	square := unitSquare(t)
	cases := []struct {
		name string
		pt   types.Point
		want bool
	}{
		{"centre", types.Point{Lng: 0.5, Lat: 0.5}, true},
		{"near corner inside", types.Point{Lng: 0.01, Lat: 0.99}, true},
		{"outside east", types.Point{Lng: 1.5, Lat: 0.5}, false},
		{"outside south", types.Point{Lng: 0.5, Lat: -0.1}, false},
		{"on edge", types.Point{Lng: 0, Lat: 0.5}, false},
		{"on vertex", types.Point{Lng: 1, Lat: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := square.Contains(tc.pt); got != tc.want {
				t.Errorf("Contains(%v) = %v, want %v", tc.pt, got, tc.want)
			}
		})
	}
}

func TestPolygonContains_Nil(t *testing.T) {
	var p *Polygon
	if p.Contains(types.Point{Lat: 0.5, Lng: 0.5}) {
		t.Fatal("nil polygon must not contain any point")
	}
}

func TestNewPolygon_TooFewPoints(t *testing.T) {
	if _, err := NewPolygon([]types.Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}); !errors.Is(err, ErrEmptyRing) {
		t.Fatalf("expected ErrEmptyRing, got %v", err)
	}
}

func TestParsePolygon_WithHole(t *testing.T) {
	raw := []byte(`{"type":"Polygon","coordinates":[
		[[0,0],[0,10],[10,10],[10,0],[0,0]],
		[[4,4],[4,6],[6,6],[6,4],[4,4]]
	]}`)
	p, err := ParsePolygon(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !p.Contains(types.Point{Lng: 2, Lat: 2}) {
		t.Error("point between outer ring and hole should be inside")
	}
	if p.Contains(types.Point{Lng: 5, Lat: 5}) {
		t.Error("point inside hole should be outside")
	}
}

func TestParsePolygon_WrongGeometry(t *testing.T) {
	_, err := ParsePolygon([]byte(`{"type":"Point","coordinates":[1,2]}`))
	if !errors.Is(err, ErrNotPolygon) {
		t.Fatalf("expected ErrNotPolygon, got %v", err)
	}
	if _, err := ParsePolygon([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParsePoint_LngLatOrder(t *testing.T) {
	pt, err := ParsePoint([]byte(`{"type":"Point","coordinates":[121.565,25.033]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pt.Lng != 121.565 || pt.Lat != 25.033 {
		t.Fatalf("unexpected point %+v", pt)
	}

	raw, err := PointGeoJSON(pt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := ParsePoint(raw)
	if err != nil || back != pt {
		t.Fatalf("round trip mismatch: %+v, %v", back, err)
	}
}

func TestPolygonMarshalJSON(t *testing.T) {
	b, err := json.Marshal(unitSquare(t))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p, err := ParsePolygon(b)
	if err != nil {
		t.Fatalf("re-parse marshalled polygon: %v", err)
	}
	if !p.Contains(types.Point{Lng: 0.5, Lat: 0.5}) {
		t.Fatal("re-parsed polygon lost its area")
	}
}
