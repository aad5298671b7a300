package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utiles/utiles/internal/core"
)

func init() {
	rootCmd.AddCommand(tilesCmd())
	rootCmd.AddCommand(boundingTileCmd())
	rootCmd.AddCommand(parentCmd())
	rootCmd.AddCommand(childrenCmd())
	rootCmd.AddCommand(neighborsCmd())
	rootCmd.AddCommand(quadkeyCmd())
	rootCmd.AddCommand(pmtileidCmd())
}

func tilesCmd() *cobra.Command {
	var seq bool
	cmd := &cobra.Command{
		Use:   "tiles <zoom> [input...]",
		Short: "Echo the tiles intersecting bboxes or GeoJSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zoom, err := parseZoomArg(args[0])
			if err != nil {
				return err
			}
			out := emitter{w: cmd.OutOrStdout(), seq: seq}
			return valuesFrom(args[1:], cmd.InOrStdin(), func(value string) error {
				bbox, err := parseBboxValue(value)
				if err != nil {
					return err
				}
				for t := range core.Tiles(bbox, []int{zoom}) {
					out.emit(t.JSONArr())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&seq, "seq", false, "Write an RS-delimited JSON sequence")
	return cmd
}

func boundingTileCmd() *cobra.Command {
	var seq bool
	cmd := &cobra.Command{
		Use:   "bounding-tile [input...]",
		Short: "Echo the bounding tile of bboxes or GeoJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := emitter{w: cmd.OutOrStdout(), seq: seq}
			return valuesFrom(args, cmd.InOrStdin(), func(value string) error {
				bbox, err := parseBboxValue(value)
				if err != nil {
					return err
				}
				t, err := core.BoundingTile(bbox)
				if err != nil {
					return badInput(err)
				}
				out.emit(t.JSONArr())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&seq, "seq", false, "Write an RS-delimited JSON sequence")
	return cmd
}

func parentCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "parent [tile...]",
		Short: "Echo the parent of input tiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 1 {
				return badInputf("depth must be >= 1, got %d", depth)
			}
			out := emitter{w: cmd.OutOrStdout()}
			return valuesFrom(args, cmd.InOrStdin(), func(value string) error {
				t, err := parseTileValue(value)
				if err != nil {
					return err
				}
				if t.Z-depth < 0 {
					return badInputf("tile %s has no parent at depth %d", t, depth)
				}
				p, err := t.ParentAtZoom(t.Z - depth)
				if err != nil {
					return badInput(err)
				}
				out.emit(p.JSONArr())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 1, "Number of zoom levels to ascend")
	return cmd
}

func childrenCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "children [tile...]",
		Short: "Echo the children of input tiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 1 {
				return badInputf("depth must be >= 1, got %d", depth)
			}
			out := emitter{w: cmd.OutOrStdout()}
			return valuesFrom(args, cmd.InOrStdin(), func(value string) error {
				t, err := parseTileValue(value)
				if err != nil {
					return err
				}
				kids, err := t.ChildrenAtZoom(t.Z + depth)
				if err != nil {
					return badInput(err)
				}
				for _, k := range kids {
					out.emit(k.JSONArr())
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 1, "Number of zoom levels to descend")
	return cmd
}

func neighborsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "neighbors [tile...]",
		Short: "Echo the neighbors of input tiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := emitter{w: cmd.OutOrStdout()}
			return valuesFrom(args, cmd.InOrStdin(), func(value string) error {
				t, err := parseTileValue(value)
				if err != nil {
					return err
				}
				for _, n := range t.Neighbors() {
					out.emit(n.JSONArr())
				}
				return nil
			})
		},
	}
}

func quadkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quadkey [input...]",
		Short: "Convert between tiles and quadkeys",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := emitter{w: cmd.OutOrStdout()}
			return valuesFrom(args, cmd.InOrStdin(), func(value string) error {
				trimmed := strings.TrimSpace(value)
				if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
					t, err := parseTileValue(trimmed)
					if err != nil {
						return err
					}
					out.emit(t.Quadkey())
					return nil
				}
				t, err := core.QuadkeyToTile(trimmed)
				if err != nil {
					return badInput(err)
				}
				out.emit(t.JSONArr())
				return nil
			})
		},
	}
}

func pmtileidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pmtileid [input...]",
		Short: "Convert between tiles and PMTiles ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := emitter{w: cmd.OutOrStdout()}
			return valuesFrom(args, cmd.InOrStdin(), func(value string) error {
				trimmed := strings.TrimSpace(value)
				if id, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
					t, err := core.TileFromPmtileID(id)
					if err != nil {
						return badInput(err)
					}
					out.emit(t.JSONArr())
					return nil
				}
				t, err := parseTileValue(trimmed)
				if err != nil {
					return err
				}
				out.emit(fmt.Sprintf("%d", t.PmtileID()))
				return nil
			})
		},
	}
}
