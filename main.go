package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lab1702/pong-web/server"
)

func main() {
	port := flag.String("port", "8080", "Server port")
	redisAddr := flag.String("redis", "", "Coordination store address (host:port)")
	redisPassword := flag.String("redis-password", "", "Coordination store password")
	origins := flag.String("origins", "", "Comma-separated extra allowed websocket origins")
	baseTick := flag.Duration("tick", 0, "Scheduler tick override")
	clientSync := flag.Duration("client-sync", 0, "Client sync cadence override")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if !*debug {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg := server.DefaultConfig()
	if *redisAddr != "" {
		cfg.RedisAddr = *redisAddr
	}
	cfg.RedisPassword = *redisPassword
	if *origins != "" {
		cfg.AllowedOrigins = strings.Split(*origins, ",")
	}
	if *baseTick > 0 {
		cfg.BaseTick = *baseTick
	}
	if *clientSync > 0 {
		cfg.ClientSync = *clientSync
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	queue := server.NewRedisMatchQueue(rdb, cfg.QueueKey)

	// A dead coordination store only disables matchmaking; bot matches
	// and running games do not depend on it.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := queue.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).
			Msg("coordination store unreachable, matchmaking disabled until it recovers")
	}
	pingCancel()

	store := server.NewSessionStore()
	inputs := server.NewInputCache(cfg.InputTTL)
	hub := server.NewServer(store, inputs, queue, cfg, log)
	scheduler := server.NewScheduler(store, inputs, hub, cfg, log)

	go scheduler.Run()

	http.HandleFunc("/ws", hub.HandleWebSocket)
	http.HandleFunc("/healthcheck", hub.HandleHealthCheck)

	srv := &http.Server{
		Addr:         ":" + *port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("port", *port).Msg("pong server listening")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Drain the scheduler first so every live game gets its terminal
	// update before connections start closing.
	if err := scheduler.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("scheduler drain timed out")
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("redis close error")
	}

	log.Info().Msg("server stopped")
}
