package cover

import (
	"testing"

	"github.com/utiles/utiles/internal/core"
)

func tileSetOf(tiles []core.Tile) map[core.Tile]struct{} {
	set := make(map[core.Tile]struct{}, len(tiles))
	for _, t := range tiles {
		set[t] = struct{}{}
	}
	return set
}

func TestCoverPoint(t *testing.T) {
	data := []byte(`{"type": "Point", "coordinates": [20.6852, 40.1222]}`)
	tiles, err := Cover(data, 9, 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 1 {
		t.Fatalf("Expected 1 tile, got %d", len(tiles))
	}
	if tiles[0] != core.NewTile(285, 193, 9) {
		t.Errorf("Expected (285, 193, 9), got %s", tiles[0])
	}
}

func TestCoverPointFeature(t *testing.T) {
	data := []byte(`{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [20.6852, 40.1222]}}`)
	tiles, err := Cover(data, 9, 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 1 || tiles[0] != core.NewTile(285, 193, 9) {
		t.Errorf("Unexpected cover: %v", tiles)
	}
}

func TestCoverMultiPoint(t *testing.T) {
	data := []byte(`{"type": "MultiPoint", "coordinates": [[-84.48, 38.04], [-94.48, 48.04]]}`)
	tiles, err := Cover(data, 6, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 2 {
		t.Fatalf("Expected 2 tiles, got %d: %v", len(tiles), tiles)
	}
}

func TestCoverLine(t *testing.T) {
	data := []byte(`{"type": "LineString", "coordinates": [[-105.0, 39.9], [-104.9, 40.0]]}`)
	tiles, err := Cover(data, 12, 12)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) == 0 {
		t.Fatal("Expected a non-empty cover")
	}
	set := tileSetOf(tiles)
	// both endpoints must be covered
	for _, pt := range [][2]float64{{-105.0, 39.9}, {-104.9, 40.0}} {
		tile, err := core.TileFromLngLat(pt[0], pt[1], 12, false)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := set[tile]; !ok {
			t.Errorf("Endpoint tile %s missing from cover", tile)
		}
	}
	// a line's tiles form a connected path: each tile touches another
	if len(tiles) > 1 {
		for _, tile := range tiles {
			touching := false
			for _, n := range tile.Neighbors() {
				if _, ok := set[n]; ok {
					touching = true
					break
				}
			}
			if !touching {
				t.Errorf("Tile %s is disconnected", tile)
			}
		}
	}
}

func TestCoverVerticalLine(t *testing.T) {
	data := []byte(`{"type": "LineString", "coordinates": [[-105.0, 39.0], [-105.0, 40.0]]}`)
	tiles, err := Cover(data, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	xs := make(map[int]struct{})
	for _, tile := range tiles {
		xs[tile.X] = struct{}{}
	}
	if len(xs) != 1 {
		t.Errorf("Vertical line should stay in one column, got columns %v", xs)
	}
}

func TestCoverPolygonFillsInterior(t *testing.T) {
	// Roughly a 1-degree square around Boulder.
	data := []byte(`{"type": "Polygon", "coordinates": [[
		[-105.5, 39.5], [-104.5, 39.5], [-104.5, 40.5], [-105.5, 40.5], [-105.5, 39.5]
	]]}`)
	tiles, err := Cover(data, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	set := tileSetOf(tiles)
	center, err := core.TileFromLngLat(-105.0, 40.0, 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := set[center]; !ok {
		t.Errorf("Interior tile %s missing from polygon cover", center)
	}
	// every covered tile must intersect the polygon's bbox
	for _, tile := range tiles {
		b := tile.Bounds()
		if b.East < -105.5 || b.West > -104.5 || b.North < 39.5 || b.South > 40.5 {
			t.Errorf("Tile %s does not intersect the polygon bbox", tile)
		}
	}
}

func TestCoverPolygonHole(t *testing.T) {
	data := []byte(`{"type": "Polygon", "coordinates": [
		[[-105.5, 39.5], [-104.5, 39.5], [-104.5, 40.5], [-105.5, 40.5], [-105.5, 39.5]],
		[[-105.2, 39.8], [-104.8, 39.8], [-104.8, 40.2], [-105.2, 40.2], [-105.2, 39.8]]
	]}`)
	withHole, err := Cover(data, 11, 11)
	if err != nil {
		t.Fatal(err)
	}
	set := tileSetOf(withHole)
	holeCenter, err := core.TileFromLngLat(-105.0, 40.0, 11, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := set[holeCenter]; ok {
		t.Errorf("Tile %s inside the hole should not be covered", holeCenter)
	}
}

func TestCoverFeatureCollectionDeduped(t *testing.T) {
	one := `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [20.6852, 40.1222]}}
	]}`
	two := `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [20.6852, 40.1222]}},
		{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [20.6852, 40.1222]}}
	]}`
	a, err := Cover([]byte(one), 9, 9)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Cover([]byte(two), 9, 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Errorf("Duplicate features changed the cover: %d vs %d", len(a), len(b))
	}
}

func TestCoverGeometryCollection(t *testing.T) {
	data := []byte(`{"type": "GeometryCollection", "geometries": [
		{"type": "Point", "coordinates": [20.6852, 40.1222]},
		{"type": "Point", "coordinates": [-9.0, 53.2]}
	]}`)
	tiles, err := Cover(data, 9, 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 2 {
		t.Errorf("Expected 2 tiles, got %d", len(tiles))
	}
}

func TestCoverMinzoomMerges(t *testing.T) {
	data := []byte(`{"type": "Polygon", "coordinates": [[
		[-105.5, 39.5], [-104.5, 39.5], [-104.5, 40.5], [-105.5, 40.5], [-105.5, 39.5]
	]]}`)
	deep, err := Cover(data, 12, 12)
	if err != nil {
		t.Fatal(err)
	}
	merged, err := Cover(data, 8, 12)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) >= len(deep) {
		t.Errorf("Expected the merged cover to be smaller: %d vs %d", len(merged), len(deep))
	}
}

func TestCoverBadInput(t *testing.T) {
	if _, err := Cover([]byte(`not geojson`), 4, 4); err == nil {
		t.Error("Expected an error for invalid geojson")
	}
	if _, err := Cover([]byte(`{"type": "Point", "coordinates": [0, 0]}`), 8, 4); err == nil {
		t.Error("Expected an error for minzoom > maxzoom")
	}
}

func TestEdges(t *testing.T) {
	// 3x3 block: the center tile is interior, the 8 around it are edges.
	var tiles []core.Tile
	for x := 10; x <= 12; x++ {
		for y := 20; y <= 22; y++ {
			tiles = append(tiles, core.NewTile(x, y, 13))
		}
	}
	edges := Edges(tiles)
	if len(edges) != 8 {
		t.Fatalf("Expected 8 edge tiles, got %d", len(edges))
	}
	for _, e := range edges {
		if e == core.NewTile(11, 21, 13) {
			t.Error("Interior tile reported as edge")
		}
	}
}

func TestEdgesSingle(t *testing.T) {
	edges := Edges([]core.Tile{core.NewTile(1, 1, 4)})
	if len(edges) != 1 {
		t.Errorf("A lone tile is its own edge, got %v", edges)
	}
}

func TestEdgesDuplicateInput(t *testing.T) {
	in := []core.Tile{{X: 1, Y: 1, Z: 4}, {X: 1, Y: 1, Z: 4}, {X: 2, Y: 1, Z: 4}}
	edges := Edges(in)
	if len(edges) != 2 {
		t.Errorf("Expected 2 unique edge tiles, got %v", edges)
	}
}
