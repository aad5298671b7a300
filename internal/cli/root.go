// Package cli maps the ut subcommands onto the core operations. Commands
// read JSON values from stdin (LF-delimited or RS-prefixed JSON text
// sequences) and write the same shapes to stdout; diagnostics go to stderr.
package cli

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/utiles/utiles/internal/conf"
)

var flagDebugOn bool
var flagConfigFilename string

var rootCmd = &cobra.Command{
	Use:           "utiles",
	Short:         "Web-Mercator tile and MBTiles utilities",
	Version:       conf.AppConfig.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(os.Stderr)
		conf.InitConfig(flagConfigFilename, flagDebugOn)
		if conf.Configuration.Log.Debug {
			log.SetLevel(log.TraceLevel)
			log.Debugf("Log level = TRACE")
		}
		conf.DumpConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagDebugOn, "debug", "d", false, "Set logging level to TRACE")
	rootCmd.PersistentFlags().StringVarP(&flagConfigFilename, "config", "c", "", "config file name")
}

// Execute runs the dispatcher.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", conf.AppConfig.Name, err)
	}
	return err
}

// usageError marks bad user input: invalid JSON, invalid tile triples,
// invalid zooms. It maps to exit code 2.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func badInput(err error) error {
	if err == nil {
		return nil
	}
	return usageError{err: err}
}

func badInputf(format string, args ...interface{}) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

// ExitCode maps an Execute error to the process exit status: 2 for bad
// input, 1 for operational failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ue usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}
