// Package cmd provides the command-line interface of wbcache.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

type options struct {
	configPath string
	envFile    string
	backend    string
	numLines   int
	record     string
	verbose    bool
}

// NewRootCmd creates the wbcache command with all its subcommands.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "wbcache",
		Short: "wbcache puts a write-back LRU cache in front of a backing store.",
		Long: `wbcache puts a fixed-size, write-back, least-recently-used cache ` +
			`in front of a backing store. The store can live in memory, in a ` +
			`SQLite database, or in a directory of entry files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addGlobalFlags(rootCmd.PersistentFlags(), opts)

	rootCmd.AddCommand(
		newDemoCmd(opts),
		newGetCmd(opts),
		newPutCmd(opts),
		newDumpCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newEventsCmd(),
	)

	return rootCmd
}

func addGlobalFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.configPath, "config", "",
		"HuJSON configuration file")
	flags.StringVar(&opts.envFile, "env-file", "",
		".env file with WBCACHE_* variables")
	flags.StringVar(&opts.backend, "backend", "",
		"backing store: memory, sqlite, or file")
	flags.IntVar(&opts.numLines, "lines", 0,
		"number of cache lines")
	flags.StringVar(&opts.record, "record", "",
		"record cache events into this SQLite file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"log every cache event to stderr")
}

// Execute runs the wbcache command and exits. Caches and recorders
// registered with atexit are flushed before the program ends.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
