package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/perfsync/perfsync/pkg/performance"
)

var servePort int

// reportLinkRequest is the body for POST /reports.
type reportLinkRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	DateFrom     string `json:"date_from"`
	DateTo       string `json:"date_to"`
	ReportType   string `json:"report_type"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the synchronous report link endpoint",
	Long:  "Exposes POST /reports: requests a report, waits within the polling budget, and returns the download link. No rows are loaded.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/reports", handleReportLink)

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

		zap.L().Info("report link server listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// handleReportLink runs one job synchronously through to the download link:
// request, poll (raising on an exhausted budget), resolve.
func handleReportLink(w http.ResponseWriter, req *http.Request) {
	var body reportLinkRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.ClientID == "" || body.ClientSecret == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "client_id and client_secret are required"})
		return
	}

	ctx := req.Context()
	client := vendorClient(performance.Credential{
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
	})

	jobID, err := client.RequestReport(ctx, performance.ReportRequest{
		DateFrom: body.DateFrom,
		DateTo:   body.DateTo,
		Type:     body.ReportType,
	})
	if err != nil {
		writeVendorError(w, err)
		return
	}

	pollInterval := time.Duration(cfg.Sync.PollIntervalSecs) * time.Second
	pollTimeout := time.Duration(cfg.Sync.PollTimeoutSecs) * time.Second
	if _, err := performance.Poll(ctx, client, jobID,
		performance.WithPollInterval(pollInterval),
		performance.WithPollTimeout(pollTimeout),
		performance.WithRaiseOnTimeout(),
	); err != nil {
		writeVendorError(w, err)
		return
	}

	link, err := client.ReportLink(ctx, jobID)
	if err != nil {
		writeVendorError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"link": link})
}

// writeVendorError maps client errors onto HTTP statuses: an exhausted
// polling budget is 404 (the report is simply not ready), everything else
// is a gateway failure.
func writeVendorError(w http.ResponseWriter, err error) {
	var timedOut *performance.TimedOutError
	if errors.As(err, &timedOut) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not ready"})
		return
	}

	zap.L().Error("report link request failed", zap.Error(err))
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "vendor request failed"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
