package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/wbcache/cache"
	"github.com/sarchlab/wbcache/hooking"
	"github.com/sarchlab/wbcache/monitoring"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var (
		port        int
		openBrowser bool
	)

	serveCmd := &cobra.Command{
		Use:   "serve [id]...",
		Short: "Serve the cache state over HTTP until interrupted",
		Long: "Serve the cache state over HTTP until interrupted. " +
			"The given entries are read into the cache once the server is up.",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := openSession(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() { err = errors.Join(err, s.close()) }()

			ids := make([][]byte, 0, len(args))
			for _, arg := range args {
				id, err := encode(arg, s.cfg.IDSize, "id")
				if err != nil {
					return err
				}

				ids = append(ids, id)
			}

			if port == 0 {
				port = s.cfg.MonitorPort
			}

			m := monitoring.NewMonitor().WithPortNumber(port)
			if openBrowser {
				m = m.WithBrowser()
			}

			registerSession(m, s)

			addr, err := m.StartServer()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", s.cache.Name(), addr)

			if len(ids) > 0 {
				p := warm(m, s.shared, ids, s.cfg.EntrySize)
				fmt.Fprintf(cmd.OutOrStdout(), "Warmed %d of %d entries\n",
					p.Finished-p.Failed, p.Total)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return m.StopServer(ctx)
		},
	}

	serveCmd.Flags().IntVar(&port, "port", 0,
		"port of the monitoring server, random if not set")
	serveCmd.Flags().BoolVar(&openBrowser, "browser", false,
		"open the monitoring page in a browser")

	return serveCmd
}

func registerSession(m *monitoring.Monitor, s *session) {
	name := s.cache.Name()

	m.RegisterCache(s.shared, hooking.NewEventCounter())
	m.RegisterTracer(name+".load", s.loadTime, s.loadTotal)
	m.RegisterTracer(name+".store", s.storeTime, s.storeTotal)
}

// warm reads the given entries through the cache while the monitor shows the
// progress.
func warm(
	m *monitoring.Monitor,
	c *cache.SyncCache,
	ids [][]byte,
	entrySize int,
) monitoring.Progress {
	bar := m.CreateProgressBar("warm up "+c.Name(), uint64(len(ids)))
	defer m.CompleteProgressBar(bar)

	out := make([]byte, entrySize)

	for _, id := range ids {
		bar.Begin()
		bar.Done(c.Read(id, out))
	}

	return bar.Progress()
}
