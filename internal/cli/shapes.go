package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utiles/utiles/internal/core"
)

func init() {
	rootCmd.AddCommand(shapesCmd())
}

// shapeFeature is a tile rendered as a GeoJSON feature. Field order matches
// the emitted key order.
type shapeFeature struct {
	Bbox       [4]float64             `json:"bbox"`
	Geometry   shapeGeometry          `json:"geometry"`
	ID         string                 `json:"id"`
	Properties map[string]interface{} `json:"properties"`
	Type       string                 `json:"type"`
}

type shapeGeometry struct {
	Coordinates [][][2]float64 `json:"coordinates"`
	Type        string         `json:"type"`
}

type shapeCollection struct {
	Features []shapeFeature `json:"features"`
	Type     string         `json:"type"`
}

func shapesCmd() *cobra.Command {
	var (
		precision int
		mercator  bool
		bboxMode  bool
		feature   bool
		collect   bool
		extents   bool
		buffer    float64
		seq       bool
	)
	cmd := &cobra.Command{
		Use:   "shapes [tile...]",
		Short: "Echo tiles as GeoJSON features, bboxes or extents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bboxMode && feature {
				return badInputf("--bbox and --feature are mutually exclusive")
			}
			out := emitter{w: cmd.OutOrStdout(), seq: seq}
			var collected []shapeFeature

			err := valuesFrom(args, cmd.InOrStdin(), func(value string) error {
				in, err := core.ParseTileInput(value)
				if err != nil {
					return badInput(err)
				}
				t := in.Tile

				b := t.Bounds()
				w, s, e, n := b.West, b.South, b.East, b.North
				if mercator {
					w, s = core.XY(w, s, false)
					e, n = core.XY(e, n, false)
				}
				if buffer != 0 {
					w -= buffer
					s -= buffer
					e += buffer
					n += buffer
				}
				w, s = roundPair(w, s, precision)
				e, n = roundPair(e, n, precision)

				switch {
				case extents:
					out.emit(fmt.Sprintf("%s %s %s %s",
						fmtCoord(w, precision), fmtCoord(s, precision),
						fmtCoord(e, precision), fmtCoord(n, precision)))
					return nil
				case bboxMode:
					arr, err := json.Marshal([4]float64{w, s, e, n})
					if err != nil {
						return err
					}
					out.emit(string(arr))
					return nil
				}

				f := shapeFeature{
					Bbox: [4]float64{w, s, e, n},
					Geometry: shapeGeometry{
						Type: "Polygon",
						Coordinates: [][][2]float64{{
							{w, s}, {w, n}, {e, n}, {e, s}, {w, s},
						}},
					},
					ID:         fmt.Sprintf("(%d, %d, %d)", t.X, t.Y, t.Z),
					Properties: map[string]interface{}{"title": fmt.Sprintf("XYZ tile (%d, %d, %d)", t.X, t.Y, t.Z)},
					Type:       "Feature",
				}
				if in.ID != "" {
					f.ID = in.ID
				}
				for k, v := range in.Props {
					f.Properties[k] = v
				}

				if collect {
					collected = append(collected, f)
					return nil
				}
				enc, err := json.Marshal(f)
				if err != nil {
					return err
				}
				out.emit(string(enc))
				return nil
			})
			if err != nil {
				return err
			}

			if collect {
				enc, err := json.Marshal(shapeCollection{Features: collected, Type: "FeatureCollection"})
				if err != nil {
					return err
				}
				out.emit(string(enc))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&precision, "precision", -1, "Decimal precision of coordinates")
	cmd.Flags().BoolVar(&mercator, "mercator", false, "Output EPSG:3857 coordinates")
	cmd.Flags().BoolVar(&bboxMode, "bbox", false, "Output bbox arrays instead of features")
	cmd.Flags().BoolVar(&feature, "feature", false, "Output features (the default)")
	cmd.Flags().BoolVar(&collect, "collect", false, "Collect output into a FeatureCollection")
	cmd.Flags().BoolVar(&extents, "extents", false, "Output space-separated extents")
	cmd.Flags().Float64Var(&buffer, "buffer", 0, "Buffer shapes by the given amount")
	cmd.Flags().BoolVar(&seq, "seq", false, "Write an RS-delimited JSON sequence")
	return cmd
}

func roundPair(a, b float64, precision int) (float64, float64) {
	return roundTo(a, precision), roundTo(b, precision)
}

func roundTo(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	scale := math.Pow10(precision)
	return math.Round(v*scale) / scale
}

// fmtCoord renders a coordinate with a fixed number of decimals when a
// precision was requested.
func fmtCoord(v float64, precision int) string {
	if precision < 0 {
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
	}
	return fmt.Sprintf("%.*f", precision, v)
}
