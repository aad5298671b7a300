package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utiles/utiles/internal/conf"
	"github.com/utiles/utiles/internal/cp"
	"github.com/utiles/utiles/internal/mbtiles"
)

func init() {
	rootCmd.AddCommand(touchCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(metadataCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(aggHashCmd())
}

func touchCmd() *cobra.Command {
	var dbTypeFlag string
	var pageSize int
	cmd := &cobra.Command{
		Use:   "touch <path>",
		Short: "Create a new empty MBTiles archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageSize == 0 {
				pageSize = conf.Configuration.Db.PageSize
			}
			if dbTypeFlag == "" {
				dbTypeFlag = conf.Configuration.Db.DbType
			}
			dbtype, err := mbtiles.ParseDbType(dbTypeFlag)
			if err != nil {
				return badInput(err)
			}
			db, err := mbtiles.Create(args[0], dbtype, pageSize)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
	cmd.Flags().StringVar(&dbTypeFlag, "db-type", "", "Schema: flat, hash or norm")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "SQLite page size")
	return cmd
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Short: "Echo MBTiles archive statistics as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := mbtiles.Open(args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			info, err := db.Info()
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}
}

func metadataCmd() *cobra.Command {
	var obj bool
	cmd := &cobra.Command{
		Use:   "metadata <path>",
		Short: "Echo MBTiles metadata rows as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := mbtiles.Open(args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			if obj {
				m, err := db.MetadataMap()
				if err != nil {
					return err
				}
				return printJSON(cmd, m)
			}
			rows, err := db.MetadataRows()
			if err != nil {
				return err
			}
			if rows == nil {
				rows = []mbtiles.MetadataRow{}
			}
			return printJSON(cmd, rows)
		},
	}
	cmd.Flags().BoolVar(&obj, "obj", false, "Output a JSON object instead of rows")
	return cmd
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <path>",
		Short: "Re-derive MBTiles metadata from the archive contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := mbtiles.Open(args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			res, err := db.Update()
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func aggHashCmd() *cobra.Command {
	var bboxFlag string
	cmd := &cobra.Command{
		Use:   "agg-hash <path>",
		Short: "Echo the aggregate content hash of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := mbtiles.Open(args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			filter := mbtiles.NewFilter()
			bbox, err := cp.ParseBboxFlag(bboxFlag)
			if err != nil {
				return badInput(err)
			}
			filter.Bbox = bbox
			res, err := db.AggHash(filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&bboxFlag, "bbox", "", "Restrict to a west,south,east,north bbox")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(enc))
	return nil
}
