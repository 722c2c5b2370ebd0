package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/component"
	"github.com/kiwiworld/objectd/internal/config"
	"github.com/kiwiworld/objectd/internal/core/async"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/kiwiworld/objectd/internal/core/event"
	coresys "github.com/kiwiworld/objectd/internal/core/system"
	"github.com/kiwiworld/objectd/internal/handler"
	gonet "github.com/kiwiworld/objectd/internal/net"
	"github.com/kiwiworld/objectd/internal/net/packet"
	"github.com/kiwiworld/objectd/internal/object"
	"github.com/kiwiworld/objectd/internal/persist"
	"github.com/kiwiworld/objectd/internal/scripting"
	"github.com/kiwiworld/objectd/internal/system"
	"github.com/pkg/profile"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              objectd  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", max(3, 45-len(title))))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", max(3, 42-len(label)-len(numStr))), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if stop := startProfile(cfg.Profile); stop != nil {
		defer stop()
	}

	printBanner(cfg.Server.Name)

	base, err := asset.ParseURL(cfg.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Asset sources
	printSection("assets")
	fetcher, closeFetcher, err := newFetcher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFetcher()

	catalog := ecs.NewCatalog()
	component.Register(catalog)
	resolvers := object.DefaultResolvers()

	engine, err := scripting.NewEngine(cfg.Assets.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	for _, k := range engine.Kinds() {
		if !catalog.Known(k) {
			catalog.Register(ecs.KindInfo{Kind: k, Name: string(k), Attrs: ecs.AttrDebuggable | ecs.AttrStore})
		}
	}
	printStat("lua resolvers", engine.Install(resolvers))
	printStat("component kinds", len(catalog.All()))

	var filter *ecs.Catalog
	if cfg.Assets.StrictComponents {
		filter = catalog
	}
	loader := object.NewLoader(fetcher, resolvers, filter, log)
	fmt.Println()

	// 2. World and object pipeline
	world := ecs.NewWorld()
	bus := event.NewBus()
	queue := async.NewQueue(log)
	exec := async.NewExecutor(cfg.Assets.Workers, log)
	spawner := object.NewSpawner(loader, exec, queue, bus, base, log)
	prefetcher := object.NewPrefetcher(loader, exec, log)

	var spawned, failed int
	event.Subscribe(bus, func(event.ObjectSpawned) { spawned++ })
	event.Subscribe(bus, func(event.ObjectLoadFailed) { failed++ })

	runner := coresys.NewRunner()

	// 3. Spawn journal
	var journal *system.JournalSystem
	if cfg.Database.DSN != "" {
		printSection("journal")
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("postgres connected")

		if err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")

		journal = system.NewJournalSystem(bus, persist.NewSpawnRepo(db), cfg.Journal.FlushIntervalTicks, log)
		if cfg.Journal.ReplayOnBoot {
			n, err := journal.Replay(ctx, spawner)
			if err != nil {
				return fmt.Errorf("journal replay: %w", err)
			}
			printStat("replayed spawns", n)
		}
		fmt.Println()
	}

	// 4. Control channel
	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, &handler.Deps{
		Config:     cfg,
		Log:        log,
		Base:       base,
		Spawner:    spawner,
		Prefetcher: prefetcher,
	})

	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.SessionOptions{
		InSize:       cfg.Network.InQueueSize,
		OutSize:      cfg.Network.OutQueueSize,
		PktPerSec:    cfg.Network.PacketsPerSecond,
		WriteTimeout: cfg.Network.WriteTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()
	sessions := gonet.NewSessionStore()

	// 5. Systems
	runner.Register(system.NewInputSystem(netServer, pktReg, sessions, cfg.Network.MaxPacketsPerTick, log))
	runner.Register(system.NewQueueSystem(queue, world, cfg.Assets.DrainPerTick))
	runner.Register(object.NewIntakeSystem(world, loader, exec, queue, bus, base, log))
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewOutputSystem(sessions))
	if journal != nil {
		runner.Register(journal)
	}
	cleanup := system.NewCleanupSystem(world, log)
	runner.Register(cleanup)

	// 6. Loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Server.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("control channel on %s", netServer.Addr()))
	printReady(fmt.Sprintf("base url %s", base))
	printReady(fmt.Sprintf("loop started (tick: %s)", cfg.Server.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Server.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			netServer.Shutdown()
			settle(exec, runner, queue, cfg.Server.TickRate)
			if journal != nil {
				flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				journal.Flush(flushCtx)
				cancel()
			}
			log.Info("server stopped",
				zap.Int("entities", world.Len()),
				zap.Int("cached_objects", loader.Cached()),
				zap.Int("spawned", spawned),
				zap.Int("load_failures", failed),
				zap.Uint64("destroyed", cleanup.Destroyed()),
				zap.Uint64("ticks", runner.Ticks()),
			)
			return nil
		}
	}
}

// settle waits for background loads, runs one last tick so their results
// land in the world, then stops accepting posts.
func settle(exec *async.Executor, runner *coresys.Runner, queue *async.Queue, dt time.Duration) {
	exec.Wait()
	runner.Tick(dt)
	queue.Close()
}

// newFetcher builds the byte source chain: http(s) plus optional file://,
// optionally fronted by redis.
func newFetcher(ctx context.Context, cfg *config.Config, log *zap.Logger) (asset.Fetcher, func(), error) {
	httpFetcher := asset.NewHTTPFetcher(cfg.Assets.HTTPTimeout, cfg.Assets.MaxBytes, log)
	schemes := asset.SchemeFetcher{
		"http":  httpFetcher,
		"https": httpFetcher,
	}
	if cfg.Assets.FileRoot != "" {
		schemes["file"] = asset.NewFileFetcher(cfg.Assets.FileRoot)
		printOK(fmt.Sprintf("file root %s", cfg.Assets.FileRoot))
	}

	if !cfg.Redis.Enabled {
		return schemes, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	printOK(fmt.Sprintf("redis cache %s", cfg.Redis.Addr))
	return asset.NewRedisFetcher(rdb, schemes, cfg.Redis.TTL, cfg.Redis.Prefix, log), func() { rdb.Close() }, nil
}

func startProfile(cfg config.ProfileConfig) func() {
	var mode func(*profile.Profile)
	switch cfg.Mode {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	case "trace":
		mode = profile.TraceProfile
	default:
		return nil
	}
	p := profile.Start(mode, profile.ProfilePath(cfg.Path), profile.NoShutdownHook, profile.Quiet)
	return p.Stop
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
