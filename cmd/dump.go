package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/sarchlab/wbcache/cache"
)

func newDumpCmd(opts *options) *cobra.Command {
	var outPath string

	dumpCmd := &cobra.Command{
		Use:   "dump [id]...",
		Short: "Read entries through the cache and print every cache line",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := openSession(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() { err = errors.Join(err, s.close()) }()

			out := make([]byte, s.cfg.EntrySize)

			for _, arg := range args {
				id, err := encode(arg, s.cfg.IDSize, "id")
				if err != nil {
					return err
				}

				if err := s.cache.Read(id, out); err != nil {
					return err
				}
			}

			if outPath == "" {
				return s.cache.Dump(cmd.OutOrStdout(), textFormatter)
			}

			return writeLines(outPath, s.cache.Lines())
		},
	}

	dumpCmd.Flags().StringVarP(&outPath, "out", "o", "",
		"write the lines as JSON into this file")

	return dumpCmd
}

func textFormatter(id, value []byte) string {
	return fmt.Sprintf("%q => %q",
		bytes.TrimRight(id, "\x00"), bytes.TrimRight(value, "\x00"))
}

func writeLines(path string, lines []cache.LineView) error {
	data, err := json.MarshalIndent(lines, "", "  ")
	if err != nil {
		return err
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}
