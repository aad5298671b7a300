// Package source exposes MBTiles archives and directory pyramids through one
// tile-stream contract, realized as a two-variant sum type rather than an
// interface hierarchy.
package source

import (
	"fmt"
	"os"
	"strings"

	"github.com/utiles/utiles/internal/core"
	"github.com/utiles/utiles/internal/mbtiles"
	"github.com/utiles/utiles/internal/pyramid"
	"github.com/utiles/utiles/internal/tiletype"
)

// Kind discriminates the source variants.
type Kind int

const (
	KindMBTiles Kind = iota
	KindPyramid
)

func (k Kind) String() string {
	if k == KindPyramid {
		return "pyramid"
	}
	return "mbtiles"
}

// Source is an open tile source of either kind.
type Source struct {
	kind Kind
	path string
	db   *mbtiles.DB
	pyr  *pyramid.Pyramid
}

// LooksLikeMBTiles reports whether a path names an MBTiles archive rather
// than a pyramid directory.
func LooksLikeMBTiles(path string) bool {
	if fi, err := os.Stat(path); err == nil {
		return !fi.IsDir()
	}
	return strings.HasSuffix(path, ".mbtiles")
}

// Open opens an existing tile source: a regular file is an MBTiles archive,
// a directory is a pyramid.
func Open(path string) (*Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, path)
	}
	if fi.IsDir() {
		p, err := pyramid.Open(path)
		if err != nil {
			return nil, err
		}
		return &Source{kind: KindPyramid, path: path, pyr: p}, nil
	}
	db, err := mbtiles.Open(path)
	if err != nil {
		return nil, err
	}
	return &Source{kind: KindMBTiles, path: path, db: db}, nil
}

// Kind returns the source variant.
func (s *Source) Kind() Kind { return s.kind }

// Path returns the source path.
func (s *Source) Path() string { return s.path }

// DB returns the MBTiles handle, nil for pyramids.
func (s *Source) DB() *mbtiles.DB { return s.db }

// Each streams (tile, payload, type) for every tile matching the window in
// (z, x, y) order.
func (s *Source) Each(minzoom, maxzoom int, bbox *core.LngLatBbox, fn func(core.Tile, []byte, tiletype.TileType) error) error {
	if s.kind == KindPyramid {
		return s.pyr.Walk(minzoom, maxzoom, bbox, func(t core.Tile, data []byte) error {
			return fn(t, data, tiletype.Sniff(data))
		})
	}
	rows, err := s.db.QueryTiles(mbtiles.Filter{Bbox: bbox, MinZoom: minzoom, MaxZoom: maxzoom})
	if err != nil {
		return err
	}
	defer rows.Close()
	for {
		row, ok, err := rows.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(row.Tile, row.Data, tiletype.Sniff(row.Data)); err != nil {
			return err
		}
	}
}

// CountTiles counts the tiles Each would visit.
func (s *Source) CountTiles(minzoom, maxzoom int, bbox *core.LngLatBbox) (int64, error) {
	if s.kind == KindPyramid {
		return s.pyr.CountTiles(minzoom, maxzoom, bbox)
	}
	return s.db.CountTiles(mbtiles.Filter{Bbox: bbox, MinZoom: minzoom, MaxZoom: maxzoom})
}

// Metadata returns the source metadata map.
func (s *Source) Metadata() (map[string]string, error) {
	if s.kind == KindPyramid {
		return s.pyr.ReadMetadata()
	}
	return s.db.MetadataMap()
}

// ZoomExtent returns the zoom range holding tiles, ok=false when empty.
func (s *Source) ZoomExtent() (minz, maxz int, ok bool) {
	if s.kind == KindPyramid {
		found := false
		_ = s.pyr.Walk(0, core.MaxZoom, nil, func(t core.Tile, _ []byte) error {
			if !found {
				minz, maxz, found = t.Z, t.Z, true
			} else {
				if t.Z < minz {
					minz = t.Z
				}
				if t.Z > maxz {
					maxz = t.Z
				}
			}
			return nil
		})
		return minz, maxz, found
	}
	return s.db.ZoomExtent()
}

// Close releases the underlying handle.
func (s *Source) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
