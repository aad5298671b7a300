package cli

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/utiles/utiles/internal/core"
	"github.com/utiles/utiles/internal/cover"
)

// parseBboxValue normalizes the bbox-ish input forms shared by tiles and
// bounding-tile: a [lng, lat] point, a [w, s, e, n] bbox, a tile triple
// (taken as its bounds), a quadkey, or a GeoJSON document.
func parseBboxValue(raw string) (core.LngLatBbox, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return core.LngLatBbox{}, badInputf("empty input value")
	}
	switch s[0] {
	case '[':
		var nums []float64
		if err := json.Unmarshal([]byte(s), &nums); err != nil {
			return core.LngLatBbox{}, badInputf("invalid json array: %q", s)
		}
		switch len(nums) {
		case 2:
			return core.LngLatBbox{West: nums[0], South: nums[1], East: nums[0], North: nums[1]}, nil
		case 3:
			t, err := core.ParseTileArg(s)
			if err != nil {
				return core.LngLatBbox{}, badInput(err)
			}
			return t.Bounds(), nil
		case 4:
			b := core.LngLatBbox{West: nums[0], South: nums[1], East: nums[2], North: nums[3]}
			if b.South > b.North {
				return core.LngLatBbox{}, badInputf("%v: south > north in %q", core.ErrInvalidBbox, s)
			}
			return b, nil
		}
		return core.LngLatBbox{}, badInputf("expected a point, tile or bbox array, got %q", s)
	case '{':
		geom, err := cover.ParseGeoJSON([]byte(s))
		if err != nil {
			return core.LngLatBbox{}, badInput(err)
		}
		bound := geom.Bound()
		return core.LngLatBbox{
			West:  bound.Min.Lon(),
			South: bound.Min.Lat(),
			East:  bound.Max.Lon(),
			North: bound.Max.Lat(),
		}, nil
	default:
		t, err := core.QuadkeyToTile(s)
		if err != nil {
			return core.LngLatBbox{}, badInput(err)
		}
		return t.Bounds(), nil
	}
}

// parseTileValue wraps core.ParseTileArg mapping failures to exit code 2.
func parseTileValue(raw string) (core.Tile, error) {
	t, err := core.ParseTileArg(raw)
	if err != nil {
		return core.Tile{}, badInput(err)
	}
	return t, nil
}

// parseZoomArg parses a positional zoom argument.
func parseZoomArg(arg string) (int, error) {
	z, err := strconv.Atoi(arg)
	if err != nil {
		return 0, badInputf("invalid zoom: %q", arg)
	}
	if z < 0 || z > core.MaxZoom {
		return 0, badInputf("%v: %d", core.ErrInvalidZoom, z)
	}
	return z, nil
}
