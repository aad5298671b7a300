package cli

import (
	"github.com/spf13/cobra"

	"github.com/utiles/utiles/internal/core"
	"github.com/utiles/utiles/internal/cover"
)

func init() {
	rootCmd.AddCommand(burnCmd())
	rootCmd.AddCommand(edgesCmd())
}

func burnCmd() *cobra.Command {
	var seq bool
	cmd := &cobra.Command{
		Use:   "burn <zoom> [geojson...]",
		Short: "Burn GeoJSON into a tile set at one zoom",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zoom, err := parseZoomArg(args[0])
			if err != nil {
				return err
			}
			set := make(map[core.Tile]struct{})
			err = valuesFrom(args[1:], cmd.InOrStdin(), func(value string) error {
				tiles, err := cover.Burn([]byte(value), zoom)
				if err != nil {
					return badInput(err)
				}
				for _, t := range tiles {
					set[t] = struct{}{}
				}
				return nil
			})
			if err != nil {
				return err
			}
			out := emitter{w: cmd.OutOrStdout(), seq: seq}
			for _, t := range core.SimplifyToZoom(tilesOf(set), zoom) {
				out.emit(t.JSONArr())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seq, "seq", false, "Write an RS-delimited JSON sequence")
	return cmd
}

func edgesCmd() *cobra.Command {
	var seq bool
	cmd := &cobra.Command{
		Use:   "edges [tile...]",
		Short: "Echo the boundary tiles of a tile set",
		RunE: func(cmd *cobra.Command, args []string) error {
			var tiles []core.Tile
			err := valuesFrom(args, cmd.InOrStdin(), func(value string) error {
				t, err := parseTileValue(value)
				if err != nil {
					return err
				}
				tiles = append(tiles, t)
				return nil
			})
			if err != nil {
				return err
			}
			out := emitter{w: cmd.OutOrStdout(), seq: seq}
			for _, t := range cover.Edges(tiles) {
				out.emit(t.JSONArr())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seq, "seq", false, "Write an RS-delimited JSON sequence")
	return cmd
}

func tilesOf(set map[core.Tile]struct{}) []core.Tile {
	out := make([]core.Tile, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out
}
