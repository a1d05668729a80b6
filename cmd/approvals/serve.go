package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"approvalScope/internal/api"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	requestTimeout, _ := cmd.Flags().GetDuration("request-timeout")
	router := api.NewRouter(a.service, requestTimeout, a.logger)
	return api.NewServer(a.cfg.Listen, router, a.logger).Run(ctx)
}
