package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crowdsecurity/sqlitrace/pkg/apiserver"
)

type cliServe struct {
	cfg configGetter
}

func NewCLIServe(cfg configGetter) *cliServe {
	return &cliServe{
		cfg: cfg,
	}
}

func (cli *cliServe) NewCommand() *cobra.Command {
	var listenURI string

	cmd := &cobra.Command{
		Use:               "serve",
		Short:             "Run the HTTP API accepting log export uploads",
		Example:           `sqlitrace serve --listen 0.0.0.0:8080`,
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cli.cfg()

			if listenURI != "" {
				cfg.API.ListenURI = listenURI
			}

			catalog, err := cfg.Detection.Catalog()
			if err != nil {
				return err
			}

			server, err := apiserver.NewServer(cfg, catalog)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.Run(ctx, nil)
		},
	}

	cmd.Flags().StringVarP(&listenURI, "listen", "l", "", "address to listen on, overrides api.listen_uri")

	return cmd
}
