package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/sdv1812/sprintlet/internal/infrastructure/configs"
	"github.com/sdv1812/sprintlet/internal/infrastructure/ratelimiter"
	"github.com/sdv1812/sprintlet/internal/infrastructure/store"
	"github.com/sdv1812/sprintlet/internal/infrastructure/tracing"
	"github.com/sdv1812/sprintlet/internal/infrastructure/ws"
	"github.com/sdv1812/sprintlet/internal/presentation/api"
	"github.com/sdv1812/sprintlet/internal/presentation/handler/capacity"
	"github.com/sdv1812/sprintlet/internal/presentation/handler/health"
	"github.com/sdv1812/sprintlet/internal/presentation/handler/rooms"
	"github.com/sdv1812/sprintlet/internal/room"
	"go.uber.org/zap"
)

const serviceName = "sprintlet"

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	kv := newStore(cfg.Store)
	defer kv.Close()

	engine := room.NewEngine(kv, logger, room.Options{
		TTL:                 cfg.Room.TTL,
		InactivityThreshold: cfg.Room.InactivityThreshold,
	})

	broadcaster := ws.NewBroadcaster(cfg.Stream.SendBuffer)

	roomHandler := rooms.NewHandler(engine, broadcaster, cfg.Stream.KeepAliveInterval)
	healthHandler := health.NewHandler(kv)
	capacityHandler := capacity.NewHandler()

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})

	app := api.NewApplication(*cfg, *roomHandler, *healthHandler, *capacityHandler, logger, rl)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	logger.Fatal(app.Run(mux))
}

func newStore(cfg configs.StoreConfig) store.Store {
	switch cfg.Backend {
	case "memory":
		log.Println("using in-memory store; state will not survive restarts")
		return store.NewMemoryStore()
	default:
		return store.NewRedisStore(store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
}
