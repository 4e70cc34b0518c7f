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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lawgenie/compliance-cli/internal/analysis"
	"github.com/lawgenie/compliance-cli/internal/evidence"
	"github.com/lawgenie/compliance-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes on a chi router.
func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/requirements/analyze", handleAnalyze(env))
		r.Get("/requirements/cache-status", handleCacheStatus(env))
		r.Post("/requirements/refresh", handleRefresh(env))
		r.Get("/stats", handleStats(env))
	})

	return r
}

func handleAnalyze(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.HSCode == "" || req.ProductName == "" {
			writeError(w, http.StatusBadRequest, "hs_code and product_name are required")
			return
		}

		result, err := env.Analyzer.Analyze(r.Context(), req)
		if err != nil {
			zap.L().Error("analysis failed",
				zap.String("hs_code", req.HSCode),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "analysis failed")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleCacheStatus(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hsCode := r.URL.Query().Get("hs_code")
		product := r.URL.Query().Get("product_name")
		if hsCode == "" || product == "" {
			writeError(w, http.StatusBadRequest, "hs_code and product_name are required")
			return
		}

		key := analysis.ResultCacheKey(model.AnalysisRequest{HSCode: hsCode, ProductName: product})
		cached := env.Tiered.Get(r.Context(), key) != nil

		writeJSON(w, http.StatusOK, map[string]any{
			"hs_code":      hsCode,
			"product_name": product,
			"cached":       cached,
		})
	}
}

// handleRefresh re-runs the full pipeline with the caches bypassed.
// When agency and strategy are given it instead regathers that single
// evidence slice.
func handleRefresh(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Agency      string   `json:"agency,omitempty"`
			Strategy    string   `json:"strategy,omitempty"`
			HSCode      string   `json:"hs_code"`
			ProductName string   `json:"product_name"`
			Keywords    []string `json:"keywords,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.HSCode == "" {
			writeError(w, http.StatusBadRequest, "hs_code is required")
			return
		}

		if req.Agency != "" || req.Strategy != "" {
			items, err := env.Gatherer.Refresh(r.Context(), req.Agency, evidence.Strategy(req.Strategy),
				model.AnalysisRequest{HSCode: req.HSCode, ProductName: req.ProductName}, req.Keywords)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"agency":   req.Agency,
				"strategy": req.Strategy,
				"count":    len(items),
				"items":    items,
			})
			return
		}

		if req.ProductName == "" {
			writeError(w, http.StatusBadRequest, "product_name is required")
			return
		}
		result, err := env.Analyzer.Analyze(r.Context(), model.AnalysisRequest{
			HSCode:       req.HSCode,
			ProductName:  req.ProductName,
			ForceRefresh: true,
		})
		if err != nil {
			zap.L().Error("refresh analysis failed",
				zap.String("hs_code", req.HSCode),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "analysis failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleStats(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, env.Stats.Collect(r.Context()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
