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
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/citykit/dmur-cli/internal/export"
	"github.com/citykit/dmur-cli/internal/metrics"
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/pipeline"
	"github.com/citykit/dmur-cli/internal/spatial"
	"github.com/citykit/dmur-cli/internal/store"
	"github.com/citykit/dmur-cli/pkg/overpass"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves boundary analysis and run inspection over HTTP, with Prometheus metrics on /metrics.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("server listening", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		zap.L().Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	},
}

func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", handleAnalyze(st))
		r.Get("/runs", handleListRuns(st))
		r.Get("/runs/{id}", handleGetRun(st))
		r.Delete("/runs/{id}", handleDeleteRun(st))
	})

	return r
}

type analyzeRequest struct {
	City       string                `json:"city"`
	State      string                `json:"state,omitempty"`
	Country    string                `json:"country,omitempty"`
	Businesses []model.BusinessPoint `json:"businesses,omitempty"`
	Listings   []model.ListingRecord `json:"listings,omitempty"`
}

func handleAnalyze(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var (
			dataset *model.BusinessDataset
			err     error
		)
		if len(req.Businesses) > 0 {
			dataset = &model.BusinessDataset{
				City:       req.City,
				State:      req.State,
				Country:    req.Country,
				Timestamp:  time.Now().UTC(),
				Total:      len(req.Businesses),
				Businesses: req.Businesses,
			}
		} else {
			if req.City == "" {
				respondError(w, http.StatusBadRequest, "city or businesses is required")
				return
			}
			dataset, err = overpassClient().FetchBusinesses(r.Context(), overpass.QuerySpec{
				City:    req.City,
				State:   req.State,
				Country: req.Country,
			})
			if err != nil {
				respondError(w, http.StatusBadGateway, err.Error())
				return
			}
		}

		a, err := pipeline.Analyze(r.Context(), dataset, pipelineOptions())
		if err != nil {
			respondError(w, statusForError(err), err.Error())
			return
		}

		var result *model.DMURResult
		if len(req.Listings) > 0 {
			scorer, err := newScorer()
			if err != nil {
				respondError(w, statusForError(err), err.Error())
				return
			}
			idx := spatial.NewIndex(dataset.Businesses).Filter(spatial.Filter{
				ActiveOnly:     true,
				CommercialOnly: true,
			})
			result, err = scorer.Score(r.Context(), req.Listings, idx, a.Boundary)
			if err != nil {
				respondError(w, statusForError(err), err.Error())
				return
			}
		}

		geo, err := export.BoundaryGeoJSON(a.Boundary.Geom, boundaryProps(a))
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		run := &model.AnalysisRun{
			ID:              a.RunID,
			City:            a.City,
			Status:          model.RunStatusComplete,
			BoundaryGeoJSON: geo,
			Result:          result,
			TotalBusinesses: a.TotalBusinesses,
			CoreBusinesses:  a.CoreBusinesses,
			AreaKm2:         a.AreaKm2,
			CreatedAt:       time.Now().UTC(),
		}
		if err := st.SaveRun(r.Context(), run); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, run)
	}
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := st.ListRuns(r.Context(), store.RunFilter{
			Status: model.RunStatus(r.URL.Query().Get("status")),
			City:   r.URL.Query().Get("city"),
			Limit:  limit,
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if runs == nil {
			runs = []model.AnalysisRun{}
		}
		respondJSON(w, http.StatusOK, runs)
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, run)
	}
}

func handleDeleteRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// statusForError maps the error taxonomy to HTTP statuses: bad input is
// the client's fault, selection failure is a valid no-result outcome.
func statusForError(err error) int {
	switch {
	case model.IsDataError(err), model.IsConfigError(err):
		return http.StatusBadRequest
	case model.IsSelectionError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
