package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/cart-service/api/responses"
	"github.com/angelmondragon/cart-service/pkg/config"
	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/instance"
	"github.com/angelmondragon/cart-service/pkg/logger"
	redisx "github.com/angelmondragon/cart-service/pkg/redis"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether the cache answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ScriptCatalog lists the scripts loaded at startup.
type ScriptCatalog interface {
	Handles() []redisx.ScriptHandle
}

type readyResponse struct {
	Status  string       `json:"status"`
	Redis   redisHealth  `json:"redis"`
	Scripts []scriptInfo `json:"scripts"`
}

type redisHealth struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
}

type scriptInfo struct {
	Name string `json:"name"`
	SHA  string `json:"sha"`
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cart-Service-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the cache and lists loaded scripts. It answers 503 when
// the cache is unreachable or no scripts are loaded.
func HealthReady(cfg *config.Config, pinger Pinger, scripts ScriptCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cart-Service-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		resp := readyResponse{Status: "ready", Redis: redisHealth{Status: "healthy"}}
		start := time.Now()
		err := pinger.Ping(ctx)
		resp.Redis.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
		if err != nil {
			resp.Status = "unavailable"
			resp.Redis.Status = "unhealthy"
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "health.redis_unreachable")
			}
		}

		for _, h := range scripts.Handles() {
			resp.Scripts = append(resp.Scripts, scriptInfo{Name: h.Name, SHA: h.SHA})
		}
		if len(resp.Scripts) == 0 {
			resp.Status = "unavailable"
		}

		if resp.Status != "ready" {
			responses.WriteSuccessStatus(w, pkgerrors.MetadataFor(pkgerrors.CodeTransientUnavailable).HTTPStatus, resp)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// Metadata identifies the instance serving the request.
func Metadata(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"instance_id": instance.GetID(),
			"version":     cfg.App.Version,
			"env":         cfg.App.Env,
		})
	}
}
