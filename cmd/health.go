package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"jobmate/internship-service/internal/model"
	"jobmate/internship-service/internal/scheduler"
)

type subscriptionLister interface {
	List(ctx context.Context) ([]model.Subscription, error)
}

type tickReporter interface {
	LastTick() (scheduler.TickStats, bool)
}

type healthResponse struct {
	Status        string               `json:"status"`
	Service       string               `json:"service"`
	Version       string               `json:"version"`
	Subscriptions int                  `json:"subscriptions"`
	LastTick      *scheduler.TickStats `json:"lastTick"`
}

// healthHandler reports liveness plus the subscription count and the last
// tick. A store failure degrades the status but still answers 200.
func healthHandler(subs subscriptionLister, ticks tickReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:  "ok",
			Service: "internship-service",
			Version: version,
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		list, err := subs.List(ctx)
		if err != nil {
			slog.Warn("health: list subscriptions failed", "err", err)
			resp.Status = "degraded"
		}
		resp.Subscriptions = len(list)

		if stats, ok := ticks.LastTick(); ok {
			resp.LastTick = &stats
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}
