package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/wbcache/datarecording"
)

func newEventsCmd() *cobra.Command {
	var (
		pos   string
		limit int
	)

	eventsCmd := &cobra.Command{
		Use:   "events <db>",
		Short: "Print the cache events recorded with --record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := datarecording.NewReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			reader.MapTable(datarecording.EventTable, datarecording.EventEntry{})

			params := datarecording.QueryParams{
				OrderBy: "Clock, rowid",
				Limit:   limit,
			}

			if pos != "" {
				params.Where = "Pos = ?"
				params.Args = []any{pos}
			}

			results, total, err := reader.Query(
				context.Background(), datarecording.EventTable, params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				e := r.(*datarecording.EventEntry)
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\tline=%d\tid=%s",
					e.Clock, e.Cache, e.Op, e.Pos, e.Line, e.EntryID)

				if e.Error != "" {
					fmt.Fprintf(out, "\terror=%s", e.Error)
				}

				fmt.Fprintln(out)
			}

			fmt.Fprintf(out, "%d of %d events\n", len(results), total)

			return nil
		},
	}

	eventsCmd.Flags().StringVar(&pos, "pos", "",
		"only print events at this hook position, such as CacheEvict")
	eventsCmd.Flags().IntVar(&limit, "limit", 0,
		"maximum number of events to print")

	return eventsCmd
}
