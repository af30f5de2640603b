// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the geocoding map over HTTP. Each browser session
// gets its own workspace holding a viewer.Controller; the page only draws
// what the API returns.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"slices"
	"time"

	"github.com/gimi9/geocode-web/analytics"
	"github.com/gimi9/geocode-web/archive"
	"github.com/gimi9/geocode-web/export"
	"github.com/gimi9/geocode-web/geocode"
	"github.com/gimi9/geocode-web/history"
	"github.com/gimi9/geocode-web/viewer"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed templates
var assets embed.FS

// Workspaces idle for longer than this are dropped.
const (
	workspaceIdle  = 2 * time.Hour
	sweepInterval  = 10 * time.Minute
	shutdownBudget = 10 * time.Second
)

// Publisher stores an export and returns a link to it.
type Publisher interface {
	Publish(ctx context.Context, d *export.Download) (*archive.Published, error)
}

// Options wires the server dependencies. Only Geocoder is required.
type Options struct {
	Geocoder      geocode.Geocoder
	History       history.Repository
	Archive       Publisher
	Tracker       analytics.Tracker
	Samples       []string
	CORSOrigins   []string
	SessionCookie string
	SecureCookie  bool
	// Restore loads the latest stored batch into a new workspace.
	Restore bool
}

type Server struct {
	opts       Options
	workspaces *workspaces
}

// NewServer creates a server.
func NewServer(opts Options) *Server {
	if opts.Tracker == nil {
		opts.Tracker = analytics.Noop{}
	}

	if opts.SessionCookie == "" {
		opts.SessionCookie = "geocode_session"
	}

	s := &Server{opts: opts}
	s.workspaces = newWorkspaces(s.newController)

	return s
}

// Router returns the gin engine serving the page and the API.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	if c := corsConfig(s.opts.CORSOrigins); c != nil {
		r.Use(cors.New(*c))
	}

	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(assets, "templates/*.html")))

	static, err := fs.Sub(assets, "templates/static")
	if err != nil {
		panic(err)
	}

	r.StaticFS("/static", http.FS(static))

	r.Use(s.session)

	r.GET("/", s.index)
	r.GET("/sample/:name", s.sample)
	r.POST("/api", s.query)
	r.POST("/api/ckan", s.preview)
	r.GET("/api/view", s.view)
	r.POST("/api/viewport", s.viewport)
	r.POST("/api/results/:id/select", s.selectResult)
	r.GET("/api/results/:id/popup", s.popup)
	r.GET("/api/results/:id/failure", s.failure)
	r.POST("/api/popup/close", s.closePopup)
	r.POST("/api/filter", s.filter)
	r.GET("/api/cells", s.cells)
	r.GET("/api/history", s.listHistory)
	r.POST("/api/history/:id/restore", s.restoreHistory)
	r.GET("/download/:format", s.download)

	return r
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweep(ctx)

	errCh := make(chan error, 1)

	go func() {
		zap.L().Info("serving geocode map", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return eris.Wrap(err, "serving")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownBudget)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down")
	}

	return nil
}

func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.workspaces.sweep(workspaceIdle); n > 0 {
				zap.L().Debug("dropped idle workspaces", zap.Int("count", n))
			}
		}
	}
}

func corsConfig(origins []string) *cors.Config {
	if len(origins) == 0 {
		return nil
	}

	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}

	return &c
}

// newController builds the controller of a new workspace, wiring history
// and analytics, and restores the latest batch of the session if asked to.
func (s *Server) newController(ctx context.Context, session string) *viewer.Controller {
	ctrl := viewer.NewController(s.opts.Geocoder)

	ctrl.OnCommit(func(ctx context.Context, c viewer.Commit) {
		if c.Source == viewer.SourceRestore {
			return
		}

		analytics.GeocodeExecuted(s.opts.Tracker, session, c.Summary.Text)
	})

	if s.opts.History == nil {
		return ctrl
	}

	ctrl.OnCommit(func(ctx context.Context, c viewer.Commit) {
		if c.Source == viewer.SourceRestore {
			return
		}

		_, err := s.opts.History.SaveBatch(ctx, &history.Record{
			Session: session,
			Source:  string(c.Source),
			Name:    c.Name,
			Query:   c.Query,
			Batch:   c.Batch,
		})
		if err != nil {
			zap.L().Error("failed to store batch", zap.String("session", session), zap.Error(err))
		}
	})

	if !s.opts.Restore {
		return ctrl
	}

	rec, err := s.opts.History.LatestBatch(ctx, session)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			zap.L().Warn("failed to load latest batch", zap.String("session", session), zap.Error(err))
		}

		return ctrl
	}

	if _, err := ctrl.Restore(ctx, rec.Batch, rec.Name); err != nil {
		zap.L().Warn("failed to restore batch", zap.Int64("batch", rec.ID), zap.Error(err))
	}

	return ctrl
}
