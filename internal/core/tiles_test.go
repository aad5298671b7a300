package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiles(t *testing.T) {
	got := TilesList(LngLatBbox{West: -105, South: 39.99, East: -104.99, North: 40}, []int{14})
	assert.Equal(t, []Tile{{3413, 6202, 14}, {3413, 6203, 14}}, got)
}

func TestTilesCount(t *testing.T) {
	bbox := LngLatBbox{West: -105, South: 39.99, East: -104.99, North: 40}
	assert.Equal(t, uint64(2), TilesCount(bbox, []int{14}))
	world := LngLatBbox{West: -180, South: -90, East: 180, North: 90}
	assert.Equal(t, uint64(len(TilesList(world, []int{3}))), TilesCount(world, []int{3}))
}

func TestTilesAntimeridian(t *testing.T) {
	got := TilesList(LngLatBbox{West: 175.0, South: 5.0, East: -175.0, North: 10.0}, []int{2})
	assert.Len(t, got, 2)
}

func TestTilesGlobalClamped(t *testing.T) {
	got := TilesList(LngLatBbox{West: -180, South: -90, East: 180, North: 90}, []int{1})
	require.Len(t, got, 4)
	for _, tile := range got {
		assert.GreaterOrEqual(t, tile.Y, 0)
		assert.LessOrEqual(t, tile.Y, 1)
	}
}

func TestTilesBoundsRoundtrip(t *testing.T) {
	for _, tile := range []Tile{{3414, 6202, 14}, {487, 332, 10}, {11, 10, 10}} {
		b := tile.Bounds()
		got := TilesList(b, []int{tile.Z})
		require.Len(t, got, 1, "tile %s", tile)
		assert.Equal(t, tile, got[0])

		children := TilesList(b, []int{tile.Z + 1})
		assert.Len(t, children, 4)
	}
}

func TestTilesRestartable(t *testing.T) {
	seq := Tiles(LngLatBbox{West: -10, South: -10, East: 10, North: 10}, []int{3, 4})
	var first, second []Tile
	for tile := range seq {
		first = append(first, tile)
	}
	for tile := range seq {
		second = append(second, tile)
	}
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestBoundingTile(t *testing.T) {
	tile, err := BoundingTile(LngLatBbox{West: -92.5, South: 0.5, East: -90.5, North: 1.5})
	require.NoError(t, err)
	assert.Equal(t, NewTile(31, 63, 7), tile)

	tile, err = BoundingTile(LngLatBbox{West: -92, South: -2, East: -88, North: 2})
	require.NoError(t, err)
	assert.Equal(t, NewTile(0, 0, 0), tile)
}

func TestBoundingTileRoundtrip(t *testing.T) {
	for _, tile := range []Tile{{0, 0, 0}, {1, 2, 3}, {486, 332, 10}, {3413, 6202, 14}} {
		got, err := BoundingTile(tile.Bounds())
		require.NoError(t, err)
		assert.Equal(t, tile, got, "bounding_tile(bounds(%s))", tile)
	}
}

func TestBoundingTileAntimeridian(t *testing.T) {
	tile, err := BoundingTile(LngLatBbox{West: 175, South: 5, East: -175, North: 10})
	require.NoError(t, err)
	assert.Equal(t, NewTile(0, 0, 0), tile)
}

func TestSimplify(t *testing.T) {
	parent := NewTile(243, 166, 9)
	in := parent.Children(false)
	got := Simplify(in)
	assert.Equal(t, []Tile{parent}, got)
}

func TestSimplifyDropsCovered(t *testing.T) {
	in := []Tile{{1, 2, 3}}
	in = append(in, NewTile(1, 2, 3).Children(false)...)
	kids, err := NewTile(1, 2, 3).ChildrenAtZoom(6)
	require.NoError(t, err)
	in = append(in, kids[:7]...)
	got := Simplify(in)
	assert.Equal(t, []Tile{{1, 2, 3}}, got)
}

func TestSimplifyIdempotent(t *testing.T) {
	in := []Tile{
		{1, 0, 1},
		{2, 4, 4}, {3, 4, 4}, {3, 5, 4}, {2, 5, 4},
		{7, 7, 5},
	}
	once := Simplify(in)
	twice := Simplify(once)
	assert.Equal(t, once, twice)
	assert.Contains(t, once, NewTile(1, 2, 3))
}

func TestSimplifyToZoomFloor(t *testing.T) {
	in := NewTile(1, 2, 3).Children(false)
	got := SimplifyToZoom(in, 4)
	assert.Len(t, got, 4)
}

func TestParseTileArg(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want Tile
	}{
		{"[1, 2, 3]", Tile{1, 2, 3}},
		{"[[1, 2, 3]]", Tile{1, 2, 3}},
		{`{"x": 1, "y": 2, "z": 3}`, Tile{1, 2, 3}},
		{`{"tile": [1, 2, 3], "properties": {"title": "foo"}}`, Tile{1, 2, 3}},
		{"0313102310", Tile{486, 332, 10}},
	} {
		got, err := ParseTileArg(tc.raw)
		require.NoError(t, err, "input %q", tc.raw)
		assert.Equal(t, tc.want, got, "input %q", tc.raw)
	}

	for _, bad := range []string{"", "[1, 2]", "[1, 2, 3, 4]", `{"x": 1}`, "[9999, 0, 2]", "lolwut4"} {
		_, err := ParseTileArg(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseTileInputProps(t *testing.T) {
	in, err := ParseTileInput(`{"tile": [106, 193, 9], "properties": {"title": "foo"}, "id": "42"}`)
	require.NoError(t, err)
	assert.Equal(t, Tile{106, 193, 9}, in.Tile)
	assert.Equal(t, "foo", in.Props["title"])
	assert.Equal(t, "42", in.ID)
}
