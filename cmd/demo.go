package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/wbcache/backing/memstore"
	"github.com/sarchlab/wbcache/cache"
	"github.com/sarchlab/wbcache/hooking"
)

const (
	demoArraySize = 20
	demoFill      = '.'
	demoNumReads  = 5
)

func newDemoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Cache an integer array and print the cache lines",
		Long: `demo puts a cache in front of an array of 20 integers whose first ` +
			`element is '.' and whose others are 0, reads the first 5 elements ` +
			`twice, and prints every cache line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			numLines := opts.numLines
			if numLines == 0 {
				numLines = demoNumReads
			}

			return runDemo(cmd, numLines, opts.verbose)
		},
	}
}

func runDemo(cmd *cobra.Command, numLines int, verbose bool) error {
	array := memstore.NewIntArray(demoArraySize, 0)
	array.Set(0, demoFill)

	builder := cache.MakeBuilder().
		WithNumLines(numLines).
		WithEntrySize(memstore.IntSize).
		WithIDSize(memstore.IntSize).
		WithBackingStore(array)

	if verbose {
		logger := log.New(cmd.ErrOrStderr(), "", 0)
		builder = builder.WithHook(hooking.NewEventLogger(logger))
	}

	c, err := builder.Build("demo")
	if err != nil {
		return err
	}

	out := make([]byte, memstore.IntSize)

	for round := 0; round < 2; round++ {
		for i := int32(0); i < demoNumReads; i++ {
			if err := c.Read(memstore.EncodeInt(i), out); err != nil {
				return err
			}
		}
	}

	err = c.Dump(cmd.OutOrStdout(), func(id, value []byte) string {
		return fmt.Sprintf("%d => %d",
			memstore.DecodeInt(id), memstore.DecodeInt(value))
	})
	if err != nil {
		return err
	}

	return c.Close()
}
