// Package pyramid reads and writes directory tile pyramids laid out as
// <root>/<z>/<x>/<y>.<ext> with a metadata.json sibling mirroring the
// MBTiles metadata table.
package pyramid

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/utiles/utiles/internal/core"
	"github.com/utiles/utiles/internal/tiletype"
)

// MetadataFile is the sidecar file mirroring MBTiles metadata.
const MetadataFile = "metadata.json"

// Pyramid is a tile tree rooted at a directory. Directories are created
// lazily on the first write.
type Pyramid struct {
	root string
}

// New returns a pyramid rooted at dir.
func New(root string) *Pyramid {
	return &Pyramid{root: root}
}

// Open requires the root directory to exist.
func Open(root string) (*Pyramid, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, root)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Pyramid{root: root}, nil
}

// Root returns the pyramid's root directory.
func (p *Pyramid) Root() string { return p.root }

// WriteTile stores one tile, deriving the file extension from the sniffed
// payload type.
func (p *Pyramid) WriteTile(t core.Tile, data []byte) error {
	return p.WriteTileExt(t, data, tiletype.Sniff(data).Ext())
}

// WriteTileExt stores one tile under an already-derived extension.
func (p *Pyramid) WriteTileExt(t core.Tile, data []byte, ext string) error {
	dir := filepath.Join(p.root, strconv.Itoa(t.Z), strconv.Itoa(t.X))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create tile directory: %w", err)
	}
	path := filepath.Join(dir, strconv.Itoa(t.Y)+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tile %s: %w", t, err)
	}
	return nil
}

// ReadTile loads one tile payload regardless of extension.
func (p *Pyramid) ReadTile(t core.Tile) ([]byte, error) {
	dir := filepath.Join(p.root, strconv.Itoa(t.Z), strconv.Itoa(t.X))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: tile %s", core.ErrNotFound, t)
	}
	prefix := strconv.Itoa(t.Y) + "."
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			return os.ReadFile(filepath.Join(dir, e.Name()))
		}
	}
	return nil, fmt.Errorf("%w: tile %s", core.ErrNotFound, t)
}

// Walk visits every tile in strict (z, x, y) order. The bbox and zoom
// window, when set, prune whole directories before any file is read.
func (p *Pyramid) Walk(minzoom, maxzoom int, bbox *core.LngLatBbox, fn func(core.Tile, []byte) error) error {
	zooms, err := sortedNumericDirs(p.root)
	if err != nil {
		return err
	}
	for _, z := range zooms {
		if z < minzoom || z > maxzoom {
			continue
		}
		var windows [][2]core.Tile
		if bbox != nil {
			for _, box := range bbox.Split() {
				ul, lr := core.TileRangeForBbox(box, z)
				windows = append(windows, [2]core.Tile{ul, lr})
			}
		}
		zdir := filepath.Join(p.root, strconv.Itoa(z))
		xs, err := sortedNumericDirs(zdir)
		if err != nil {
			return err
		}
		for _, x := range xs {
			if !xInWindows(x, windows) {
				continue
			}
			xdir := filepath.Join(zdir, strconv.Itoa(x))
			ys, err := sortedTileFiles(xdir)
			if err != nil {
				return err
			}
			for _, yf := range ys {
				t := core.Tile{X: x, Y: yf.y, Z: z}
				if !yInWindows(t, windows) {
					continue
				}
				data, err := os.ReadFile(filepath.Join(xdir, yf.name))
				if err != nil {
					return fmt.Errorf("failed to read tile %s: %w", t, err)
				}
				if err := fn(t, data); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// CountTiles counts the tiles Walk would visit.
func (p *Pyramid) CountTiles(minzoom, maxzoom int, bbox *core.LngLatBbox) (int64, error) {
	var n int64
	err := p.Walk(minzoom, maxzoom, bbox, func(core.Tile, []byte) error {
		n++
		return nil
	})
	return n, err
}

// WriteMetadata writes the metadata.json sidecar.
func (p *Pyramid) WriteMetadata(meta map[string]string) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("failed to create pyramid root: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(p.root, MetadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Debugf("Wrote %s (%d keys)", path, len(meta))
	return nil
}

// ReadMetadata reads the metadata.json sidecar; a missing file yields an
// empty map.
func (p *Pyramid) ReadMetadata() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(p.root, MetadataFile))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata.json: %w", err)
	}
	meta := map[string]string{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata.json: %w", err)
	}
	return meta, nil
}

type tileFile struct {
	y    int
	name string
}

func sortedNumericDirs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var out []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func sortedTileFiles(dir string) ([]tileFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var out []tileFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		dot := strings.IndexByte(name, '.')
		if dot <= 0 {
			continue
		}
		y, err := strconv.Atoi(name[:dot])
		if err != nil {
			continue
		}
		out = append(out, tileFile{y: y, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].y < out[j].y })
	return out, nil
}

func xInWindows(x int, windows [][2]core.Tile) bool {
	if windows == nil {
		return true
	}
	for _, w := range windows {
		if x >= w[0].X && x <= w[1].X {
			return true
		}
	}
	return false
}

func yInWindows(t core.Tile, windows [][2]core.Tile) bool {
	if windows == nil {
		return true
	}
	for _, w := range windows {
		if t.X >= w[0].X && t.X <= w[1].X && t.Y >= w[0].Y && t.Y <= w[1].Y {
			return true
		}
	}
	return false
}
