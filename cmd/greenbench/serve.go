package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/greenhouse-bench/internal/report"
	"github.com/danielpatrickdp/greenhouse-bench/internal/results"
)

// #region serve-cmd

func newServeCmd(g *globals) *cobra.Command {
	var db, addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored results and prometheus metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := g.logger()
			if err != nil {
				return err
			}
			store, err := results.OpenDSN(db)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, newRouter(store, logger))),
				ReadHeaderTimeout: 5 * time.Second,
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdown)
			}()

			logger.Info("serving", "addr", addr, "db", db)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", envOr("GREENBENCH_DB", "greenbench.db"), "result database: SQLite path or postgres:// DSN")
	cmd.Flags().StringVar(&addr, "addr", envOr("GREENBENCH_HTTP_ADDR", ":8080"), "listen address")
	return cmd
}

// #endregion serve-cmd

// #region api

type api struct {
	store *results.Store
	log   *slog.Logger
}

func newRouter(store *results.Store, logger *slog.Logger) *mux.Router {
	a := &api{store: store, log: logger}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/batches", a.batches).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", a.summary).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", a.runs).Methods(http.MethodGet)
	r.HandleFunc("/api/runs/{id}", a.run).Methods(http.MethodGet)
	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DB().PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *api) batches(w http.ResponseWriter, r *http.Request) {
	out, err := a.store.ListBatches(r.Context())
	if err != nil {
		a.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": out})
}

// summary aggregates the filtered runs into the report layout.
func (a *api) summary(w http.ResponseWriter, r *http.Request) {
	f, err := filterOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.Limit = 0
	recs, err := a.store.ListRuns(r.Context(), f)
	if err != nil {
		a.internal(w, err)
		return
	}
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		if top, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid top")
			return
		}
	}
	writeJSON(w, http.StatusOK, report.Build(recs, top, time.Now()))
}

func (a *api) runs(w http.ResponseWriter, r *http.Request) {
	f, err := filterOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := a.store.ListRuns(r.Context(), f)
	if err != nil {
		a.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(recs), "runs": recs})
}

func (a *api) run(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := a.store.GetRun(r.Context(), id)
	if errors.Is(err, results.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		a.internal(w, err)
		return
	}
	log, err := a.store.Verdicts(r.Context(), id)
	if err != nil {
		a.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": rec, "verdict_log": log})
}

// filterOf reads ListRuns filters from the query string.
func filterOf(r *http.Request) (results.Filter, error) {
	q := r.URL.Query()
	f := results.Filter{
		BatchID:       q.Get("batch"),
		Model:         q.Get("model"),
		Format:        q.Get("format"),
		SystemMessage: q.Get("system_message"),
		Prompt:        q.Get("prompt"),
		Status:        results.Status(q.Get("status")),
		Limit:         100,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}
	return f, nil
}

func (a *api) internal(w http.ResponseWriter, err error) {
	a.log.Error("api_error", "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// #endregion api
