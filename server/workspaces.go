// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gimi9/geocode-web/viewer"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionKey       = "session"
	controllerKey    = "controller"
	sessionCookieAge = 30 * 24 * 60 * 60
	maxWorkspaces    = 10000
)

type workspace struct {
	ctrl     *viewer.Controller
	lastSeen time.Time
}

// workspaces maps session IDs to their controllers. Past max entries the
// least recently seen workspace is evicted.
type workspaces struct {
	mu    sync.Mutex
	items map[string]*workspace
	max   int
	build func(ctx context.Context, session string) *viewer.Controller
	now   func() time.Time
}

func newWorkspaces(build func(ctx context.Context, session string) *viewer.Controller) *workspaces {
	return &workspaces{
		items: map[string]*workspace{},
		max:   maxWorkspaces,
		build: build,
		now:   time.Now,
	}
}

// get returns the controller of session. A missing one is built outside the
// lock and, when register is false, handed out without being stored.
func (w *workspaces) get(ctx context.Context, session string, register bool) *viewer.Controller {
	if ctrl := w.lookup(session); ctrl != nil {
		return ctrl
	}

	ctrl := w.build(ctx, session)
	if !register {
		return ctrl
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// a concurrent request of the same session may have won
	if ws, ok := w.items[session]; ok {
		ws.lastSeen = w.now()

		return ws.ctrl
	}

	if len(w.items) >= w.max {
		w.evictOldest()
	}

	w.items[session] = &workspace{ctrl: ctrl, lastSeen: w.now()}

	return ctrl
}

func (w *workspaces) lookup(session string) *viewer.Controller {
	w.mu.Lock()
	defer w.mu.Unlock()

	ws, ok := w.items[session]
	if !ok {
		return nil
	}

	ws.lastSeen = w.now()

	return ws.ctrl
}

// evictOldest must be called with mu held.
func (w *workspaces) evictOldest() {
	var (
		oldest string
		seen   time.Time
	)

	for id, ws := range w.items {
		if oldest == "" || ws.lastSeen.Before(seen) {
			oldest, seen = id, ws.lastSeen
		}
	}

	delete(w.items, oldest)
}

// sweep drops the workspaces unused for longer than maxIdle.
func (w *workspaces) sweep(maxIdle time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-maxIdle)
	dropped := 0

	for id, ws := range w.items {
		if ws.lastSeen.Before(cutoff) {
			delete(w.items, id)
			dropped++
		}
	}

	return dropped
}

func (w *workspaces) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.items)
}

// session resolves the session cookie, issuing a new one when missing or
// malformed, and attaches the session's controller to the request. A fresh
// session is only stored by requests that change state; reads get a
// throwaway controller until the cookie comes back.
func (s *Server) session(c *gin.Context) {
	id, err := c.Cookie(s.opts.SessionCookie)
	fresh := err != nil || uuid.Validate(id) != nil

	if fresh {
		id = uuid.NewString()

		c.SetSameSite(s.sameSite())
		c.SetCookie(s.opts.SessionCookie, id, sessionCookieAge, "/", "", s.opts.SecureCookie, true)
	}

	register := !fresh || c.Request.Method == http.MethodPost

	c.Set(sessionKey, id)
	c.Set(controllerKey, s.workspaces.get(c.Request.Context(), id, register))
	c.Next()
}

// sameSite lets the cookie travel on cross-site requests from the allowed
// origins. Browsers drop SameSite=None cookies that are not Secure.
func (s *Server) sameSite() http.SameSite {
	if s.opts.SecureCookie && len(s.opts.CORSOrigins) > 0 {
		return http.SameSiteNoneMode
	}

	return http.SameSiteLaxMode
}

func controller(c *gin.Context) *viewer.Controller {
	return c.MustGet(controllerKey).(*viewer.Controller)
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
