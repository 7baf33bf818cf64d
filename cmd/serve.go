package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agscout/agscout/internal/discover"
	"github.com/agscout/agscout/internal/enrich"
	"github.com/agscout/agscout/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for discovery and enrichment requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/discover", handleDiscover(env))
		r.Post("/api/enrich", handleEnrich(env))
		r.Get("/api/jobs/{id}", handleGetJob(env))
		r.Get("/api/startups/{id}/contacts", handleGetContacts(env))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// handleDiscover kicks off a discovery run in the background and acknowledges
// immediately. Progress is visible through the jobs endpoint.
func handleDiscover(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URLs        []string `json:"urls"`
			TargetCount int      `json:"target_count"`
			Country     string   `json:"country"`
			UserID      string   `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
			return
		}
		if req.UserID == "" {
			req.UserID = "default"
		}

		opts := discover.Options{
			SeedURLs:    req.URLs,
			TargetCount: req.TargetCount,
			MaxRetries:  cfg.Discovery.MaxRetries,
			RetryDelay:  time.Duration(cfg.Discovery.RetryDelaySecs) * time.Second,
			Validate:    true,
			Store:       true,
			Country:     req.Country,
		}
		if opts.TargetCount == 0 {
			opts.TargetCount = cfg.Discovery.TargetCount
		}

		// The run outlives the request context.
		runCtx := context.WithoutCancel(r.Context())
		go func() {
			outcome, err := env.Orchestrator.Run(runCtx, req.UserID, opts)
			if err != nil {
				zap.L().Error("api discovery run failed", zap.Error(err))
				return
			}
			zap.L().Info("api discovery run complete",
				zap.String("job_id", outcome.Job.ID),
				zap.Int("stored", outcome.Summary.Stored))
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"status":  "accepted",
			"user_id": req.UserID,
		})
	}
}

// handleEnrich starts contact research for one startup. Fresh cached contacts
// come back synchronously; otherwise the job runs detached and its ID is
// returned for polling.
func handleEnrich(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StartupID       string `json:"startup_id"`
			Priority        int    `json:"priority"`
			IncludeLinkedIn bool   `json:"include_linkedin"`
			IncludeEmail    bool   `json:"include_email"`
			IncludePhone    bool   `json:"include_phone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
			return
		}
		if req.StartupID == "" {
			writeError(w, http.StatusBadRequest, "startup_id is required", "bad_request")
			return
		}

		outcome, err := env.Worker.EnrichAsync(r.Context(), enrich.Request{
			StartupID:       req.StartupID,
			Priority:        req.Priority,
			IncludeLinkedIn: req.IncludeLinkedIn,
			IncludeEmail:    req.IncludeEmail,
			IncludePhone:    req.IncludePhone,
		})
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "startup not found", "not_found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error(), "internal")
			return
		}

		if outcome.Findings != nil && outcome.Findings.FromCache {
			writeJSON(w, http.StatusOK, map[string]any{
				"success":  true,
				"status":   "cached",
				"contacts": outcome.Findings,
			})
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"status":  string(outcome.Job.Status),
			"job_id":  outcome.Job.ID,
		})
	}
}

func handleGetJob(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if job, err := env.Store.GetDiscoveryJob(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, job)
			return
		} else if !eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, err.Error(), "internal")
			return
		}

		job, err := env.Store.GetContactJob(r.Context(), id)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, job)
		case eris.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found", "not_found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error(), "internal")
		}
	}
}

func handleGetContacts(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		startup, err := env.Store.GetStartup(r.Context(), id)
		switch {
		case eris.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "startup not found", "not_found")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error(), "internal")
			return
		}

		resp := map[string]any{
			"success":    true,
			"startup_id": startup.ID,
			"name":       startup.Name,
			"contacts":   startup.ContactInfo,
		}
		if job, err := env.Store.GetContactJobByStartup(r.Context(), id); err == nil {
			resp["job_status"] = job.Status
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
