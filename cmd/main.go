package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-theoprotect/internal/bot"
	"go-theoprotect/internal/commands"
	"go-theoprotect/internal/config"
	"go-theoprotect/internal/dispatcher"
	"go-theoprotect/internal/engine"
	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/notifier"
	"go-theoprotect/internal/platform"
	"go-theoprotect/internal/sched"
	"go-theoprotect/internal/store"
	"go-theoprotect/internal/watchdog"
)

const (
	enforcementQueueSize = 1024

	gatewayStaleAfter     = 5 * time.Minute
	maintenanceStaleAfter = 3 * time.Minute
)

func main() {
	fmt.Println("Starting TheoProtect abuse detection engine")

	cfg := config.LoadOrDefault("config.json")
	if cfg.Bot.Token == "" {
		fmt.Println("DISCORD_TOKEN is not set")
		os.Exit(1)
	}

	if err := logging.InitGlobalLogger(cfg.Logging.Level, cfg.Logging.Path); err != nil {
		panic(err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("database open failed: %v", err))
	}
	fmt.Println("Database initialized ✓")

	components, err := startComponents(cfg, st)
	if err != nil {
		panic(err)
	}

	logging.Info("All components started")
	fmt.Println("Bot connected and commands registered")

	waitForShutdown()

	stopComponents(components)
	st.Close()
	logging.Info("Shutdown complete")
	if logging.GlobalLogger != nil {
		logging.GlobalLogger.Close()
	}
}

type Components struct {
	session   *bot.Session
	scheduler *sched.Scheduler
	pool      *dispatcher.Pool
	dog       *watchdog.Watchdog
	cancel    context.CancelFunc
}

func startComponents(cfg *config.Config, st *store.Store) (*Components, error) {
	session, err := bot.NewSession(cfg.Bot.Token)
	if err != nil {
		return nil, err
	}

	scheduler := sched.New()
	pool := dispatcher.NewPool(cfg.Network.WorkerCount, enforcementQueueSize)

	httpPool := dispatcher.NewHTTPPool(cfg.Network.HTTPPoolSize)
	httpPool.Warmup(cfg.Network.APIBaseURL)
	rateLimiter := dispatcher.NewRateLimitMonitor()
	fastBan := dispatcher.NewFastBanExecutor(httpPool, rateLimiter, cfg.Bot.Token, cfg.Network.APIBaseURL)

	// Bans and kicks go over the fast HTTP path, everything else
	// through the session library.
	actions := dispatcher.NewFastActions(platform.NewDiscordActions(session.Discord()), fastBan)

	settings := func(guildID string) *config.GuildSettings {
		gs, err := st.GuildSettings(guildID)
		if err != nil {
			return config.DefaultGuildSettings(guildID)
		}
		return gs
	}

	dog := watchdog.New(30 * time.Second)
	dog.Register("gateway", gatewayStaleAfter)
	dog.Register("maintenance", maintenanceStaleAfter)

	eng := engine.New(engine.Deps{
		Persist:       st,
		Actions:       actions,
		Exec:          pool,
		Notify:        notifier.New(session.Discord(), settings),
		Owner:         session.GuildOwner,
		Scheduler:     scheduler,
		Heartbeat:     dog.Heartbeat,
		SweepMaxAgeMs: cfg.Detection.CacheMaxAgeMs,
		SweepInterval: time.Duration(cfg.Detection.SweepIntervalSec) * time.Second,
	})

	// Handlers must be attached before the gateway opens.
	bot.NewHandlers(session, eng, settings, dog).Register()

	if err := session.Connect(); err != nil {
		return nil, err
	}

	if err := commands.Initialize(session, eng, st, dog); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go eng.RunMaintenance(ctx)
	dog.Start()

	return &Components{
		session:   session,
		scheduler: scheduler,
		pool:      pool,
		dog:       dog,
		cancel:    cancel,
	}, nil
}

func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nShutdown signal received")
}

func stopComponents(c *Components) {
	c.cancel()
	c.dog.Stop()
	c.session.Close()
	c.pool.Close()
	c.scheduler.Close()
}
