// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gimi9/geocode-web/archive"
	"github.com/gimi9/geocode-web/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the geocoding map",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := server.Options{
			Geocoder:      newGeocoder(nil),
			Samples:       cfg.Backend.Samples,
			CORSOrigins:   cfg.Server.CORSOrigins,
			SessionCookie: cfg.Server.SessionCookie,
			SecureCookie:  cfg.Server.SecureCookie,
			Restore:       cfg.Server.Restore,
		}

		repo, closeHistory, err := openHistory()
		if err != nil {
			return err
		}
		defer closeHistory()

		if repo != nil {
			opts.History = repo
		}

		store, err := openArchive(ctx)
		switch {
		case errors.Is(err, archive.ErrDisabled):
			zap.L().Info("export archive disabled")
		case err != nil:
			return err
		default:
			opts.Archive = store
		}

		tracker, err := newTracker()
		if err != nil {
			return err
		}
		defer tracker.Close()

		opts.Tracker = tracker

		return server.NewServer(opts).Run(ctx, cfg.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "localhost:8080", "listen address")
	bindFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
