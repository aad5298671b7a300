package cp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/utiles/utiles/internal/core"
	"github.com/utiles/utiles/internal/mbtiles"
	"github.com/utiles/utiles/internal/pyramid"
	"github.com/utiles/utiles/internal/source"
	"github.com/utiles/utiles/internal/tiletype"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// tilePayload builds a recognizable png-ish payload unique per tile unless
// the tile coordinates are folded, which produces duplicates for dedup
// coverage.
func tilePayload(t core.Tile, dedup bool) []byte {
	payload := append([]byte{}, pngHeader...)
	if dedup {
		return append(payload, byte(t.Z))
	}
	return append(payload, []byte(fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y))...)
}

// makeArchive creates a flat archive holding the full pyramid z0..maxzoom.
func makeArchive(t *testing.T, path string, maxzoom int, dedup bool) {
	t.Helper()
	db, err := mbtiles.Create(path, mbtiles.Flat, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	w, err := db.NewWriter(mbtiles.ConflictThrow, 100)
	if err != nil {
		t.Fatal(err)
	}
	for z := 0; z <= maxzoom; z++ {
		for x := 0; x < 1<<uint(z); x++ {
			for y := 0; y < 1<<uint(z); y++ {
				tile := core.NewTile(x, y, z)
				if err := w.Put(tile, tilePayload(tile, dedup)); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("format", "png"); err != nil {
		t.Fatal(err)
	}
}

func TestCopyZoomWindow(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	dstPath := filepath.Join(dir, "dst.mbtiles")
	makeArchive(t, srcPath, 4, false)

	opts := DefaultOptions()
	opts.MinZoom = 3
	opts.MaxZoom = 4
	res, err := Copy(context.Background(), srcPath, dstPath, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.NTiles != 320 {
		t.Errorf("Expected 64 + 256 = 320 tiles, got %d", res.NTiles)
	}

	dst, err := mbtiles.Open(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()
	info, err := dst.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Ntiles != 320 {
		t.Errorf("Expected 320 tiles in destination, got %d", info.Ntiles)
	}
	if info.Minzoom == nil || *info.Minzoom != 3 || info.Maxzoom == nil || *info.Maxzoom != 4 {
		t.Errorf("Unexpected zoom range: %v..%v", info.Minzoom, info.Maxzoom)
	}

	// metadata was re-derived
	meta, err := dst.MetadataMap()
	if err != nil {
		t.Fatal(err)
	}
	if meta["minzoom"] != "3" || meta["maxzoom"] != "4" {
		t.Errorf("Unexpected metadata zoom keys: %v", meta)
	}
	if meta["format"] != "png" {
		t.Errorf("Expected png format metadata, got %q", meta["format"])
	}
}

func TestCopyDisjointThenConflict(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	dstPath := filepath.Join(dir, "dst.mbtiles")
	makeArchive(t, srcPath, 4, false)

	opts := DefaultOptions()
	opts.MinZoom = 3
	if _, err := Copy(context.Background(), srcPath, dstPath, opts); err != nil {
		t.Fatal(err)
	}

	// Disjoint window succeeds without a conflict policy.
	opts = DefaultOptions()
	opts.MaxZoom = 2
	if _, err := Copy(context.Background(), srcPath, dstPath, opts); err != nil {
		t.Fatal(err)
	}

	dst, err := mbtiles.Open(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	info, err := dst.Info()
	dst.Close()
	if err != nil {
		t.Fatal(err)
	}
	if info.Ntiles != 341 {
		t.Errorf("Expected 341 tiles after both copies, got %d", info.Ntiles)
	}

	// Overlapping window without a policy fails.
	opts = DefaultOptions()
	_, err = Copy(context.Background(), srcPath, dstPath, opts)
	if !errors.Is(err, core.ErrWriteConflict) {
		t.Errorf("Expected a write conflict, got %v", err)
	}

	// ...and succeeds with ignore.
	opts.Conflict = mbtiles.ConflictIgnore
	if _, err := Copy(context.Background(), srcPath, dstPath, opts); err != nil {
		t.Errorf("Expected ignore policy to succeed, got %v", err)
	}
}

func TestCopyBboxHalfWorld(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	dstPath := filepath.Join(dir, "west.mbtiles")
	makeArchive(t, srcPath, 4, false)

	opts := DefaultOptions()
	opts.MinZoom = 3
	opts.MaxZoom = 4
	opts.Bbox = &core.LngLatBbox{West: -180, South: -90, East: 0, North: 90}
	res, err := Copy(context.Background(), srcPath, dstPath, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.NTiles != 160 {
		t.Errorf("Expected half of 320 tiles, got %d", res.NTiles)
	}
}

func TestAggHashEqualAcrossSchemas(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	makeArchive(t, srcPath, 3, false)

	hashes := make(map[mbtiles.DbType]string)
	for _, dbtype := range []mbtiles.DbType{mbtiles.Flat, mbtiles.Hash, mbtiles.Norm} {
		dstPath := filepath.Join(dir, string(dbtype)+".mbtiles")
		opts := DefaultOptions()
		opts.DbType = dbtype
		if _, err := Copy(context.Background(), srcPath, dstPath, opts); err != nil {
			t.Fatalf("copy to %s: %v", dbtype, err)
		}
		dst, err := mbtiles.Open(dstPath)
		if err != nil {
			t.Fatal(err)
		}
		if dst.DbType() != dbtype {
			t.Errorf("Expected schema %s, got %s", dbtype, dst.DbType())
		}
		res, err := dst.AggHash(mbtiles.NewFilter())
		dst.Close()
		if err != nil {
			t.Fatal(err)
		}
		if res.Ntiles != 85 {
			t.Errorf("Expected 85 tiles in %s agg-hash, got %d", dbtype, res.Ntiles)
		}
		hashes[dbtype] = res.Hash
	}
	if hashes[mbtiles.Flat] != hashes[mbtiles.Hash] || hashes[mbtiles.Flat] != hashes[mbtiles.Norm] {
		t.Errorf("Schema hashes differ: %v", hashes)
	}
}

func TestCopyDedupNorm(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	dstPath := filepath.Join(dir, "norm.mbtiles")
	// every tile at a zoom shares one payload
	makeArchive(t, srcPath, 3, true)

	opts := DefaultOptions()
	opts.DbType = mbtiles.Norm
	res, err := Copy(context.Background(), srcPath, dstPath, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.NTiles != 85 {
		t.Fatalf("Expected 85 tiles, got %d", res.NTiles)
	}

	dst, err := mbtiles.Open(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()
	// 4 distinct payloads (one per zoom), but 85 map rows
	images, err := dst.TableCount("images")
	if err != nil {
		t.Fatal(err)
	}
	maps, err := dst.TableCount("map")
	if err != nil {
		t.Fatal(err)
	}
	if images != 4 {
		t.Errorf("Expected 4 deduplicated images, got %d", images)
	}
	if maps != 85 {
		t.Errorf("Expected 85 map rows, got %d", maps)
	}
}

func TestCopyStreamMatchesBuffered(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	makeArchive(t, srcPath, 3, false)

	buffered := filepath.Join(dir, "buffered.mbtiles")
	streamed := filepath.Join(dir, "streamed.mbtiles")

	opts := DefaultOptions()
	if _, err := Copy(context.Background(), srcPath, buffered, opts); err != nil {
		t.Fatal(err)
	}
	opts.Stream = true
	opts.Jobs = 4
	if _, err := Copy(context.Background(), srcPath, streamed, opts); err != nil {
		t.Fatal(err)
	}

	hashOf := func(path string) string {
		db, err := mbtiles.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		res, err := db.AggHash(mbtiles.NewFilter())
		if err != nil {
			t.Fatal(err)
		}
		return res.Hash
	}
	if hashOf(buffered) != hashOf(streamed) {
		t.Error("Streamed and buffered copies disagree")
	}
}

func TestCopyToPyramidAndBack(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	pyrPath := filepath.Join(dir, "pyr")
	backPath := filepath.Join(dir, "back.mbtiles")
	makeArchive(t, srcPath, 2, false)

	if _, err := Copy(context.Background(), srcPath, pyrPath, DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	// png payloads got .png filenames
	if _, err := os.Stat(filepath.Join(pyrPath, "0", "0", "0.png")); err != nil {
		t.Errorf("Expected 0/0/0.png in pyramid: %v", err)
	}
	if _, err := os.Stat(filepath.Join(pyrPath, pyramid.MetadataFile)); err != nil {
		t.Errorf("Expected metadata.json in pyramid: %v", err)
	}

	res, err := Copy(context.Background(), pyrPath, backPath, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.NTiles != 21 {
		t.Errorf("Expected 21 tiles round-tripped, got %d", res.NTiles)
	}

	srcDB, err := mbtiles.Open(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	defer srcDB.Close()
	backDB, err := mbtiles.Open(backPath)
	if err != nil {
		t.Fatal(err)
	}
	defer backDB.Close()
	a, err := srcDB.AggHash(mbtiles.NewFilter())
	if err != nil {
		t.Fatal(err)
	}
	b, err := backDB.AggHash(mbtiles.NewFilter())
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash != b.Hash {
		t.Error("Pyramid round-trip changed the tile set")
	}
}

func TestCopyFastPath(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	dstPath := filepath.Join(dir, "fast.mbtiles")
	makeArchive(t, srcPath, 2, false)

	res, err := Copy(context.Background(), srcPath, dstPath, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !res.FastPath {
		t.Error("Expected the attach fast path for a same-schema unfiltered copy")
	}
	if res.NTiles != 21 {
		t.Errorf("Expected 21 tiles, got %d", res.NTiles)
	}
}

func TestCopyCancelled(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	dstPath := filepath.Join(dir, "dst.mbtiles")
	makeArchive(t, srcPath, 3, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := DefaultOptions()
	opts.MinZoom = 1 // skip the attach fast path
	_, err := Copy(ctx, srcPath, dstPath, opts)
	if err == nil {
		t.Fatal("Expected a cancelled copy to fail")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSourceEachOrder(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.mbtiles")
	makeArchive(t, srcPath, 2, false)

	src, err := source.Open(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	var prev *core.Tile
	err = src.Each(0, core.MaxZoom, nil, func(tile core.Tile, data []byte, tt tiletype.TileType) error {
		if tt.Format != tiletype.FormatPNG {
			t.Errorf("Expected png payload for %s, got %s", tile, tt.Format)
		}
		if prev != nil {
			after := tile.Z > prev.Z ||
				(tile.Z == prev.Z && (tile.X > prev.X || (tile.X == prev.X && tile.Y > prev.Y)))
			if !after {
				t.Errorf("Tiles out of order: %s then %s", prev, tile)
			}
		}
		cp := tile
		prev = &cp
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestParseBboxFlag(t *testing.T) {
	b, err := ParseBboxFlag("-180,-90,0,90")
	if err != nil {
		t.Fatal(err)
	}
	if b.West != -180 || b.East != 0 {
		t.Errorf("Unexpected bbox: %+v", b)
	}
	b, err = ParseBboxFlag("[1, 1, 179, 80]")
	if err != nil {
		t.Fatal(err)
	}
	if b.West != 1 || b.North != 80 {
		t.Errorf("Unexpected bbox: %+v", b)
	}
	if _, err := ParseBboxFlag("nope"); err == nil {
		t.Error("Expected an error for a malformed bbox")
	}
	b, err = ParseBboxFlag("")
	if err != nil || b != nil {
		t.Errorf("Empty flag should yield nil bbox, got %v %v", b, err)
	}
}
