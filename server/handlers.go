// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gimi9/geocode-web/archive"
	"github.com/gimi9/geocode-web/export"
	"github.com/gimi9/geocode-web/geocode"
	"github.com/gimi9/geocode-web/history"
	"github.com/gimi9/geocode-web/spatial"
	"github.com/gimi9/geocode-web/viewer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultCellResolution = 5
	historyLimit          = 20
)

type viewportRequest struct {
	Width  int     `json:"width" binding:"gte=0"`
	Height int     `json:"height" binding:"gte=0"`
	Lat    float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lng    float64 `json:"lng" binding:"gte=-180,lte=180"`
	Zoom   float64 `json:"zoom" binding:"gte=0"`
}

func (s *Server) index(c *gin.Context) {
	ctrl := controller(c)

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Samples":         s.opts.Samples,
		"UserInputSample": viewer.UserInputSample,
		"Name":            ctrl.Name(),
		"Tiles":           viewer.BaseTiles,
	})
}

func (s *Server) sample(c *gin.Context) {
	text, err := controller(c).LoadSample(c.Request.Context(), c.Param("name"))
	if err != nil {
		abort(c, err)

		return
	}

	c.String(http.StatusOK, text)
}

func (s *Server) query(c *gin.Context) {
	view, err := controller(c).Query(c.Request.Context(), c.PostForm("q"))
	if err != nil {
		abort(c, err)

		return
	}

	c.JSON(http.StatusOK, view)
}

// preview answers a rejected preview with 200 and a hidden view so the
// page hides its result panel instead of showing an error.
func (s *Server) preview(c *gin.Context) {
	resID := c.PostForm("res_id")
	if resID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "res_id is required"})

		return
	}

	view, err := controller(c).Preview(c.Request.Context(), resID, c.PostForm("file"))
	if err != nil {
		if view != nil && geocode.IsPreviewError(err) {
			c.JSON(http.StatusOK, gin.H{"hidden": true, "error": err.Error(), "view": view})

			return
		}

		abort(c, err)

		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) view(c *gin.Context) {
	c.JSON(http.StatusOK, controller(c).View())
}

func (s *Server) viewport(c *gin.Context) {
	var req viewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	state := controller(c).SetViewport(req.Width, req.Height, spatial.Point{Lat: req.Lat, Lng: req.Lng}, req.Zoom)
	c.JSON(http.StatusOK, state)
}

func (s *Server) selectResult(c *gin.Context) {
	sel, err := controller(c).Select(c.Param("id"))
	if err != nil {
		abort(c, err)

		return
	}

	c.JSON(http.StatusOK, sel)
}

func (s *Server) popup(c *gin.Context) {
	html, err := controller(c).Popup(c.Param("id"))
	if err != nil {
		abort(c, err)

		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) failure(c *gin.Context) {
	html, err := controller(c).Failure(c.Param("id"))
	if err != nil {
		abort(c, err)

		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) closePopup(c *gin.Context) {
	c.JSON(http.StatusOK, controller(c).ClosePopup())
}

func (s *Server) filter(c *gin.Context) {
	f := viewer.ShowAll
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"filter": f, "entries": controller(c).SetFilter(f)})
}

func (s *Server) cells(c *gin.Context) {
	res, err := strconv.Atoi(c.DefaultQuery("res", strconv.Itoa(defaultCellResolution)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "res must be an integer"})

		return
	}

	cells, err := controller(c).Cells(res)
	if err != nil {
		abort(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"resolution": res, "cells": cells})
}

// download serves an export as an attachment, a data URI or, with
// publish=1, a link to a copy in the object store.
func (s *Server) download(c *gin.Context) {
	format, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		abort(c, err)

		return
	}

	d, err := controller(c).Export(format, c.Query("name"))
	if err != nil {
		abort(c, err)

		return
	}

	if c.Query("publish") == "1" {
		if s.opts.Archive == nil {
			abort(c, archive.ErrDisabled)

			return
		}

		published, err := s.opts.Archive.Publish(c.Request.Context(), d)
		if err != nil {
			abort(c, err)

			return
		}

		c.JSON(http.StatusOK, published)

		return
	}

	if c.Query("as") == "datauri" {
		c.JSON(http.StatusOK, gin.H{"filename": d.Filename, "href": d.DataURI()})

		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	c.Data(http.StatusOK, d.ContentType(), d.Body)
}

func (s *Server) listHistory(c *gin.Context) {
	if s.opts.History == nil {
		c.JSON(http.StatusOK, gin.H{"batches": []*history.Record{}})

		return
	}

	recs, err := s.opts.History.ListBatches(c.Request.Context(), sessionID(c), historyLimit)
	if err != nil {
		abort(c, err)

		return
	}

	if recs == nil {
		recs = []*history.Record{}
	}

	c.JSON(http.StatusOK, gin.H{"batches": recs})
}

func (s *Server) restoreHistory(c *gin.Context) {
	if s.opts.History == nil {
		abort(c, history.ErrNotFound)

		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})

		return
	}

	rec, err := s.opts.History.GetBatch(c.Request.Context(), id)
	if err != nil {
		abort(c, err)

		return
	}

	// batches of other sessions are not visible
	if rec.Session != sessionID(c) {
		abort(c, history.ErrNotFound)

		return
	}

	view, err := controller(c).Restore(c.Request.Context(), rec.Batch, rec.Name)
	if err != nil {
		abort(c, err)

		return
	}

	c.JSON(http.StatusOK, view)
}

// abort answers err with the matching status and a JSON error body.
func abort(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func errorStatus(err error) int {
	var backendErr *geocode.BackendError

	switch {
	case errors.Is(err, geocode.ErrEmptyQuery),
		errors.Is(err, viewer.ErrResolution),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, viewer.ErrStale):
		return http.StatusConflict
	case errors.Is(err, viewer.ErrNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, viewer.ErrNoCoordinates):
		return http.StatusUnprocessableEntity
	case errors.Is(err, archive.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &backendErr):
		return backendErr.HTTPStatus()
	default:
		return http.StatusInternalServerError
	}
}
