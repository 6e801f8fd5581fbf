package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/etl"
	"github.com/stroysmeta/normcat-cli/internal/model"
	"github.com/stroysmeta/normcat-cli/internal/monitoring"
	"github.com/stroysmeta/normcat-cli/internal/pricing"
	"github.com/stroysmeta/normcat-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "serve: migrate")
		}

		orch, err := buildOrchestrator(st)
		if err != nil {
			return err
		}
		engine := buildEngine(st)
		metrics := monitoring.NewCollector(st)

		router := newRouter(st, orch, engine, metrics)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
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

func newRouter(st store.Store, orch *etl.Orchestrator, engine *pricing.Engine, metrics *monitoring.Collector) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/price", handlePrice(engine))

		r.Post("/etl/run", handleETLRun(orch, nil))
		r.Post("/etl/run/{source}", func(w http.ResponseWriter, req *http.Request) {
			handleETLRun(orch, []string{chi.URLParam(req, "source")})(w, req)
		})
		r.Get("/etl/jobs", handleListJobs(orch))
		r.Get("/etl/jobs/{id}", handleGetJob(orch))
		r.Get("/etl/stats", handleStats(orch))

		r.Get("/coefficients/{region}", handleCoefficients(st))
		r.Get("/metrics", handleMetrics(metrics))
	})

	return r
}

func handlePrice(engine *pricing.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		code := q.Get("code")
		if code == "" {
			writeError(w, http.StatusBadRequest, "code is required")
			return
		}

		qty := 1.0
		if s := q.Get("quantity"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid quantity")
				return
			}
			qty = v
		}

		apply := true
		if s := q.Get("apply_coefficients"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid apply_coefficients")
				return
			}
			apply = v
		}

		breakdown, err := engine.CalculatePrice(req.Context(), pricing.Request{
			Code:             code,
			Quantity:         qty,
			RegionCode:       q.Get("region"),
			TargetPeriod:     q.Get("period"),
			SkipCoefficients: !apply,
		})
		if err != nil {
			var nf *pricing.NotFoundError
			if errors.As(err, &nf) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("no catalog item with code %s", nf.Code))
				return
			}
			zap.L().Error("price calculation failed", zap.String("code", code), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "price calculation failed")
			return
		}

		writeJSON(w, http.StatusOK, breakdown)
	}
}

func handleETLRun(orch *etl.Orchestrator, sources []string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		job, err := orch.Launch(req.Context(), sources)
		if err != nil {
			var conflict *etl.JobConflictError
			if errors.As(err, &conflict) {
				writeJSON(w, http.StatusConflict, map[string]string{
					"error":          "a job is already running",
					"running_job_id": conflict.RunningJobID,
				})
				return
			}
			zap.L().Error("etl launch failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to start job")
			return
		}

		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleListJobs(orch *etl.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		limit := 20
		if s := q.Get("limit"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = v
		}

		jobs, err := orch.ListJobs(req.Context(), store.JobFilter{
			Status: model.JobStatus(q.Get("status")),
			Limit:  limit,
		})
		if err != nil {
			zap.L().Error("list jobs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}

		writeJSON(w, http.StatusOK, jobs)
	}
}

func handleGetJob(orch *etl.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		job, err := orch.GetJob(req.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no job with id %s", id))
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleStats(orch *etl.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		stats, err := orch.Stats(req.Context())
		if err != nil {
			zap.L().Error("job stats failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to compute stats")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleCoefficients(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		region := chi.URLParam(req, "region")
		coeffs, err := st.FindCoefficients(req.Context(), region, req.URL.Query().Get("period"))
		if err != nil {
			zap.L().Error("find coefficients failed", zap.String("region", region), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load coefficients")
			return
		}
		norm, err := st.FindOverheadNorm(req.Context(), region)
		if err != nil {
			zap.L().Error("find overhead norm failed", zap.String("region", region), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load overhead norm")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"region":        region,
			"coefficients":  coeffs,
			"overhead_norm": norm,
		})
	}
}

func handleMetrics(metrics *monitoring.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		lookback := 24
		if s := req.URL.Query().Get("lookback_hours"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 {
				writeError(w, http.StatusBadRequest, "invalid lookback_hours")
				return
			}
			lookback = v
		}

		ctx, cancel := context.WithTimeout(req.Context(), 15*time.Second)
		defer cancel()

		snapshot, err := metrics.Collect(ctx, lookback)
		if err != nil {
			zap.L().Error("metrics collection failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to collect metrics")
			return
		}

		writeJSON(w, http.StatusOK, snapshot)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
