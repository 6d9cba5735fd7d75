package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"voicebot-service/internal/analytics"
	"voicebot-service/internal/bot"
	"voicebot-service/internal/common/config"
	"voicebot-service/internal/common/logger"
	"voicebot-service/internal/crm"
	"voicebot-service/internal/nlu"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("info", "json").Error("failed to load config", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting bot server", map[string]interface{}{
		"app":     cfg.App.Name,
		"version": cfg.App.Version,
		"address": cfg.Server.Address,
	})

	var llmFallback nlu.FallbackExtractor
	if cfg.LLM.APIKey != "" {
		llmFallback = nlu.NewLLMExtractor(cfg.LLM, log)
		log.Info("LLM fallback enabled", map[string]interface{}{"model": cfg.LLM.Model})
	} else {
		log.Warn("LLM fallback disabled, no API key configured", nil)
	}

	var cache *nlu.ParseCache
	if cfg.NLU.Cache.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.NLU.Cache.Address,
			Password: cfg.NLU.Cache.Password,
			DB:       cfg.NLU.Cache.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn("parse cache unreachable, continuing without it", map[string]interface{}{
				"address": cfg.NLU.Cache.Address,
				"error":   err.Error(),
			})
		} else {
			cache = nlu.NewParseCache(rdb, config.GetDuration(cfg.NLU.Cache.TTL), log)
			log.Info("parse cache enabled", map[string]interface{}{"address": cfg.NLU.Cache.Address})
		}
	}

	parser := nlu.NewParser(nlu.NewExtractor(), llmFallback, cache, log)
	crmClient := crm.NewClient(cfg.CRM, log)
	recorder := analytics.NewRecorder(cfg.Analytics.Path, log)
	handler := bot.NewHandler(parser, crmClient, recorder, log)

	mux := http.NewServeMux()
	mux.Handle("/bot/handle", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}()
	log.Info("bot server listening", map[string]interface{}{"address": cfg.Server.Address})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", map[string]interface{}{"error": err.Error()})
	}
	log.Info("server stopped", nil)
}
