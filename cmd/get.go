package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>...",
		Short: "Read entries through the cache",
		Args:  cobra.MinimumNArgs(1),
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

				fmt.Fprintf(cmd.OutOrStdout(), "%s => %s\n",
					arg, bytes.TrimRight(out, "\x00"))
			}

			return nil
		},
	}
}
