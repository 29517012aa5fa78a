// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. A nil config uses the default rate limits.
func NewRouter(handler *Handler, config *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(config),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/health", router.handler.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics)

		r.Route("/backups", func(r chi.Router) {
			r.Get("/{id}/download", router.handler.HandleDownloadBackup)

			r.Group(func(r chi.Router) {
				r.Use(Compression)
				r.Get("/", router.handler.HandleListBackups)
				r.Get("/stats", router.handler.HandleBackupStats)
				r.Get("/{id}", router.handler.HandleGetBackup)
			})

			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimitWrite())
				r.Use(Compression)
				r.Post("/", router.handler.HandleCreateBackup)
				r.Post("/{id}/restore", router.handler.HandleRestoreBackup)
				r.Post("/{id}/validate", router.handler.HandleValidateBackup)
				r.Delete("/{id}", router.handler.HandleDeleteBackup)
			})
		})

		r.Route("/backup", func(r chi.Router) {
			r.Use(Compression)
			r.Get("/schedule", router.handler.HandleGetSchedule)
			r.Get("/retention/preview", router.handler.HandleRetentionPreview)

			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimitWrite())
				r.Put("/schedule", router.handler.HandleUpdateSchedule)
				r.Post("/retention/apply", router.handler.HandleApplyRetention)
			})
		})
	})

	return r
}
