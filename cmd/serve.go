package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/queue"
	"github.com/creatorpulse/enrich-cli/internal/resolve"
	"github.com/creatorpulse/enrich-cli/internal/syncjob"
)

var servePort int

// itemResolver and jobRunner let the router be wired with fakes in tests.
type itemResolver interface {
	Resolve(ctx context.Context, req resolve.Request) (*resolve.Outcome, error)
}

type serverDeps struct {
	resolver itemResolver
	job      syncjob.Runner
	queue    *queue.Queue
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: newRouter(serverDeps{
				resolver: env.Resolver,
				job:      env.Job,
				queue:    env.Queue,
			}),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		env.Queue.Wait()
		return nil
	},
}

func newRouter(deps serverDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Cache-first profile lookup; a miss walks the tier chain. Exhausted
	// tiers are a 404, never a 500.
	r.Get("/profile/{username}", func(w http.ResponseWriter, r *http.Request) {
		scope := model.OwnerScope(r.URL.Query().Get("scope"))
		out, err := deps.resolver.Resolve(r.Context(), resolve.Request{
			Username: chi.URLParam(r, "username"),
			Scope:    scope,
		})
		if err != nil {
			zap.L().Error("profile lookup failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if !out.Found() {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Post("/sync/manual", func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.job.Run(r.Context())
		if err != nil {
			zap.L().Error("manual sync failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sync failed"})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	r.Post("/enqueue", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SubjectID string `json:"subject_id"`
			Username  string `json:"username"`
			Scope     string `json:"scope"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.SubjectID == "" || req.Username == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subject_id and username are required"})
			return
		}

		accepted := deps.queue.Enqueue(context.WithoutCancel(r.Context()), queue.Item{
			SubjectID: req.SubjectID,
			Username:  req.Username,
			Scope:     model.OwnerScope(req.Scope),
		})
		writeJSON(w, http.StatusAccepted, map[string]any{
			"accepted": accepted,
			"pending":  deps.queue.Len(),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
