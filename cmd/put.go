package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

func newPutCmd(opts *options) *cobra.Command {
	var create bool

	putCmd := &cobra.Command{
		Use:   "put <id> <value>",
		Short: "Update an entry through the cache",
		Long: `put updates an entry through the cache. The new value reaches the ` +
			`backing store when the line is evicted or when the cache closes. ` +
			`Only existing entries can be updated unless --create is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := openSession(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() { err = errors.Join(err, s.close()) }()

			id, err := encode(args[0], s.cfg.IDSize, "id")
			if err != nil {
				return err
			}

			value, err := encode(args[1], s.cfg.EntrySize, "value")
			if err != nil {
				return err
			}

			if create {
				if err := s.store.Store(id, make([]byte, s.cfg.EntrySize)); err != nil {
					return err
				}
			}

			return s.cache.Write(id, value)
		},
	}

	putCmd.Flags().BoolVar(&create, "create", false,
		"create the entry in the backing store if it does not exist")

	return putCmd
}
