package cli

import (
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/utiles/utiles/internal/conf"
	"github.com/utiles/utiles/internal/cp"
	"github.com/utiles/utiles/internal/mbtiles"
)

func init() {
	rootCmd.AddCommand(cpCmd())
	rootCmd.AddCommand(rimrafCmd())
}

func cpCmd() *cobra.Command {
	var (
		dbTypeFlag   string
		conflictFlag string
		bboxFlag     string
		minZoom      int
		maxZoom      int
		stream       bool
		jobs         int
	)
	cmd := &cobra.Command{
		Use:   "cp <src> <dst>",
		Short: "Copy tiles between MBTiles archives and pyramids",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cp.DefaultOptions()
			opts.MinZoom = minZoom
			opts.MaxZoom = maxZoom
			opts.Stream = stream || conf.Configuration.Copy.Stream
			opts.BatchSize = conf.Configuration.Copy.BatchSize
			opts.PageSize = conf.Configuration.Db.PageSize

			opts.Jobs = jobs
			if jobs == 0 {
				opts.Jobs = conf.Configuration.Copy.Jobs
			}

			if dbTypeFlag == "" {
				dbTypeFlag = conf.Configuration.Db.DbType
			}
			dbtype, err := mbtiles.ParseDbType(dbTypeFlag)
			if err != nil {
				return badInput(err)
			}
			opts.DbType = dbtype

			conflict, err := mbtiles.ParseConflict(conflictFlag)
			if err != nil {
				return badInput(err)
			}
			opts.Conflict = conflict

			bbox, err := cp.ParseBboxFlag(bboxFlag)
			if err != nil {
				return badInput(err)
			}
			opts.Bbox = bbox

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := cp.Copy(ctx, args[0], args[1], opts)
			if err != nil {
				return err
			}
			log.Infof("Copied %d tiles to %s", res.NTiles, res.Dst)
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&dbTypeFlag, "dbtype", "", "Schema for a new MBTiles destination")
	cmd.Flags().StringVar(&conflictFlag, "conflict", "", "Duplicate policy: throw, ignore or replace")
	cmd.Flags().StringVar(&bboxFlag, "bbox", "", "Restrict to a west,south,east,north bbox")
	cmd.Flags().IntVar(&minZoom, "minzoom", -1, "Minimum zoom to copy")
	cmd.Flags().IntVar(&maxZoom, "maxzoom", -1, "Maximum zoom to copy")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream through a bounded channel pipeline")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Payload sniffer workers in streaming mode")
	return cmd
}

func rimrafCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rimraf <dir>",
		Short: "Remove a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.RemoveAll(args[0]); err != nil {
				return err
			}
			return nil
		},
	}
}
