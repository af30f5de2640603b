// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/gimi9/geocode-web/analytics"
	"github.com/gimi9/geocode-web/archive"
	"github.com/gimi9/geocode-web/geocode"
	"github.com/gimi9/geocode-web/history"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
)

func bindFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func userAgent() string {
	if cfg.Backend.UserAgent != "" && cfg.Backend.UserAgent != "geocode-web" {
		return cfg.Backend.UserAgent
	}

	return fmt.Sprintf("geocode-web/%s", Version)
}

func newGeocoder(trace io.Writer) *geocode.Client {
	return geocode.NewClient(geocode.Options{
		BaseURL:    cfg.Backend.URL,
		PreviewURL: cfg.Backend.PreviewURL,
		Token:      cfg.Backend.Token,
		UserAgent:  userAgent(),
		Timeout:    cfg.Backend.Timeout,
		RateLimit:  cfg.Backend.RateLimit,
		Burst:      cfg.Backend.Burst,
		Trace:      trace,
	})
}

// openHistory opens the batch store. It returns a nil repository when no
// store path is configured.
func openHistory() (history.Repository, func(), error) {
	if cfg.Store.Path == "" {
		return nil, func() {}, nil
	}

	db, err := sql.Open("duckdb", cfg.Store.Path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "opening %s", cfg.Store.Path)
	}

	repo := history.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, eris.Wrap(err, "creating schema")
	}

	return repo, func() { db.Close() }, nil
}

func requireHistory() (history.Repository, func(), error) {
	repo, closeFn, err := openHistory()
	if err != nil {
		return nil, nil, err
	}

	if repo == nil {
		return nil, nil, errors.New("no batch store configured, set store.path or --store-path")
	}

	return repo, closeFn, nil
}

// openArchive connects to the export bucket. It returns archive.ErrDisabled
// when no endpoint is configured.
func openArchive(ctx context.Context) (*archive.Store, error) {
	store, err := archive.New(archive.Config{
		Endpoint:  cfg.Archive.Endpoint,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Region:    cfg.Archive.Region,
		Bucket:    cfg.Archive.Bucket,
		Prefix:    cfg.Archive.Prefix,
		UseSSL:    cfg.Archive.UseSSL,
		URLTTL:    cfg.Archive.URLTTL,
	})
	if err != nil {
		return nil, err
	}

	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func newTracker() (analytics.Tracker, error) {
	return analytics.New(cfg.Analytics.PostHogKey, cfg.Analytics.PostHogHost)
}
