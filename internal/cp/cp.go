// Package cp is the streaming tile copy engine: it moves tiles from an
// MBTiles archive or pyramid into either kind of destination under zoom/bbox
// predicates and a duplicate-key policy, then repairs the destination
// metadata.
package cp

import (
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/utiles/utiles/internal/core"
	"github.com/utiles/utiles/internal/mbtiles"
	"github.com/utiles/utiles/internal/pyramid"
	"github.com/utiles/utiles/internal/source"
	"github.com/utiles/utiles/internal/tiletype"
)

// Options configures a copy.
type Options struct {
	MinZoom   int // -1 for unbounded
	MaxZoom   int // -1 for unbounded
	Bbox      *core.LngLatBbox
	DbType    mbtiles.DbType // schema for a newly created MBTiles destination
	PageSize  int
	Conflict  mbtiles.Conflict
	Stream    bool
	Jobs      int
	BatchSize int
}

// DefaultOptions returns an unfiltered copy with the throw policy.
func DefaultOptions() Options {
	return Options{
		MinZoom:   -1,
		MaxZoom:   -1,
		DbType:    mbtiles.Flat,
		PageSize:  4096,
		Conflict:  mbtiles.ConflictThrow,
		Jobs:      1,
		BatchSize: 1000,
	}
}

// Result summarizes a finished copy.
type Result struct {
	NTiles   int64  `json:"ntiles"`
	Dst      string `json:"dst"`
	FastPath bool   `json:"fast_path"`
}

type tileMsg struct {
	tile core.Tile
	data []byte
	ext  string
}

// Copy streams tiles from src to dst. The destination is created when
// missing: an .mbtiles path becomes an archive of opts.DbType, anything else
// a pyramid directory.
func Copy(ctx context.Context, srcPath, dstPath string, opts Options) (*Result, error) {
	src, err := source.Open(srcPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	minz, maxz := zoomWindow(opts)

	if source.LooksLikeMBTiles(dstPath) {
		return copyToMBTiles(ctx, src, dstPath, minz, maxz, opts)
	}
	return copyToPyramid(ctx, src, dstPath, minz, maxz, opts)
}

func zoomWindow(opts Options) (int, int) {
	minz, maxz := opts.MinZoom, opts.MaxZoom
	if minz < 0 {
		minz = 0
	}
	if maxz < 0 {
		maxz = core.MaxZoom
	}
	return minz, maxz
}

func copyToMBTiles(ctx context.Context, src *source.Source, dstPath string, minz, maxz int, opts Options) (*Result, error) {
	var dst *mbtiles.DB
	var err error
	created := false
	if _, statErr := os.Stat(dstPath); os.IsNotExist(statErr) {
		dst, err = mbtiles.Create(dstPath, opts.DbType, opts.PageSize)
		created = true
	} else {
		dst, err = mbtiles.Open(dstPath)
	}
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	filter := mbtiles.Filter{Bbox: opts.Bbox, MinZoom: minz, MaxZoom: maxz}
	if !created && opts.Conflict == mbtiles.ConflictThrow {
		existing, err := dst.CountTiles(filter)
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			return nil, fmt.Errorf("%w: destination %s already has %d tiles in the copy window (use a conflict policy)",
				core.ErrWriteConflict, dstPath, existing)
		}
	}

	// Same-schema db-to-db with no filtering collapses to one
	// INSERT ... SELECT inside a single transaction.
	if created && src.Kind() == source.KindMBTiles &&
		src.DB().DbType() == dst.DbType() &&
		opts.Bbox == nil && minz == 0 && maxz == core.MaxZoom {
		n, err := dst.CopyFrom(src.DB(), opts.Conflict)
		if err != nil {
			return nil, err
		}
		if err := finalizeMBTiles(src, dst); err != nil {
			return nil, err
		}
		return &Result{NTiles: n, Dst: dstPath, FastPath: true}, nil
	}

	writer, err := dst.NewWriter(opts.Conflict, opts.BatchSize)
	if err != nil {
		return nil, err
	}

	put := func(t core.Tile, data []byte, _ string) error {
		return writer.Put(t, data)
	}
	n, err := pump(ctx, src, minz, maxz, opts, put)
	if err != nil {
		writer.Rollback()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	if err := finalizeMBTiles(src, dst); err != nil {
		return nil, err
	}
	return &Result{NTiles: n, Dst: dstPath}, nil
}

func copyToPyramid(ctx context.Context, src *source.Source, dstPath string, minz, maxz int, opts Options) (*Result, error) {
	if err := os.MkdirAll(dstPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pyramid root: %w", err)
	}
	pyr := pyramid.New(dstPath)

	put := func(t core.Tile, data []byte, ext string) error {
		return pyr.WriteTileExt(t, data, ext)
	}
	n, err := pump(ctx, src, minz, maxz, opts, put)
	if err != nil {
		return nil, err
	}

	meta, err := src.Metadata()
	if err != nil {
		log.Warnf("Could not read source metadata: %v", err)
		meta = map[string]string{}
	}
	if err := pyr.WriteMetadata(meta); err != nil {
		return nil, err
	}
	return &Result{NTiles: n, Dst: dstPath}, nil
}

// pump drives tiles from the source into put, either inline or through the
// bounded-channel pipeline when streaming is on.
func pump(ctx context.Context, src *source.Source, minz, maxz int, opts Options, put func(core.Tile, []byte, string) error) (int64, error) {
	var n int64
	if !opts.Stream {
		err := src.Each(minz, maxz, opts.Bbox, func(t core.Tile, data []byte, tt tiletype.TileType) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := put(t, data, tt.Ext()); err != nil {
				return err
			}
			n++
			return nil
		})
		return n, err
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	raw := make(chan tileMsg, opts.BatchSize)
	typed := make(chan tileMsg, opts.BatchSize)

	g, gctx := errgroup.WithContext(ctx)

	// Producer: reads the source in order.
	g.Go(func() error {
		defer close(raw)
		return src.Each(minz, maxz, opts.Bbox, func(t core.Tile, data []byte, _ tiletype.TileType) error {
			select {
			case raw <- tileMsg{tile: t, data: data}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	// Sniffer pool: classifies payloads between the endpoints.
	sniffers, sctx := errgroup.WithContext(gctx)
	for i := 0; i < jobs; i++ {
		sniffers.Go(func() error {
			for msg := range raw {
				msg.ext = tiletype.Sniff(msg.data).Ext()
				select {
				case typed <- msg:
				case <-sctx.Done():
					return sctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(typed)
		return sniffers.Wait()
	})

	// Single writer: the only task touching the destination.
	g.Go(func() error {
		for msg := range typed {
			if err := put(msg.tile, msg.data, msg.ext); err != nil {
				return err
			}
			n++
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return n, err
	}
	return n, nil
}

// finalizeMBTiles carries the source metadata over and re-derives the
// content-dependent keys for what was actually copied.
func finalizeMBTiles(src *source.Source, dst *mbtiles.DB) error {
	meta, err := src.Metadata()
	if err != nil {
		log.Warnf("Could not read source metadata: %v", err)
	} else {
		carried := map[string]string{}
		for name, value := range meta {
			switch name {
			case "minzoom", "maxzoom", "bounds", "center":
				// re-derived below
			default:
				carried[name] = value
			}
		}
		if err := dst.SetMetadataAll(carried); err != nil {
			return err
		}
	}
	if _, err := dst.Update(); err != nil {
		return err
	}
	return dst.Analyze()
}

// ParseBboxFlag parses the --bbox flag which also accepts a JSON array.
func ParseBboxFlag(s string) (*core.LngLatBbox, error) {
	if s == "" {
		return nil, nil
	}
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "[")
	trimmed = strings.TrimSuffix(trimmed, "]")
	bbox, err := core.ParseBbox(trimmed)
	if err != nil {
		return nil, err
	}
	return &bbox, nil
}
