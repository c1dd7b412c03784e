package commands

import (
	"github.com/leapstack-labs/leapgov/internal/notifier"
	"github.com/leapstack-labs/leapgov/internal/server"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the governance HTTP API",
		Long: `Start an HTTP server that governs uploaded CSV files and exposes
reports, lineage and the schema registry.

Endpoints:
  GET  /healthz
  GET  /v1/datasets
  POST /v1/datasets/{name}/runs        (body: CSV)
  GET  /v1/datasets/{name}/report
  GET  /v1/lineage?dataset=&limit=
  GET  /v1/registry
  GET  /v1/registry/{name}
  GET  /v1/registry/{name}/history
  GET  /v1/events                      (server-sent events)`,
		Example: `  # Serve on the default address
  leapgov serve

  # Serve on a specific port backed by Postgres
  leapgov serve --addr :9000 --store postgres --store-dsn "$DATABASE_URL"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (overrides server.addr, default :8765)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	srvCfg := *cmdCtx.Cfg.GetServerConfig()
	if opts.Addr != "" {
		srvCfg.Addr = opts.Addr
	}

	srv := server.New(server.Config{
		Engine:   cmdCtx.Engine,
		Notifier: notifier.New(),
		Server:   srvCfg,
		Logger:   cmdCtx.Logger,
	})

	cmdCtx.Renderer.Success("Serving on " + srvCfg.Addr)
	return srv.Serve(cmd.Context())
}
