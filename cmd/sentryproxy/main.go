package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentryproxy/sentryproxy/internal/app"
	"github.com/sentryproxy/sentryproxy/internal/config"
	"github.com/sentryproxy/sentryproxy/internal/env"
	"github.com/sentryproxy/sentryproxy/internal/logger"
	"github.com/sentryproxy/sentryproxy/pkg/format"
	"github.com/sentryproxy/sentryproxy/pkg/nerdstats"
	"github.com/sentryproxy/sentryproxy/theme"
)

func main() {
	configPath := flag.String("config", env.String("SENTRYPROXY_CONFIG", "Config.toml"), "path to Config.toml")
	flag.Parse()

	startTime := time.Now()
	_ = env.LoadDotEnv(".env")

	logCfg := &logger.Config{
		Level:      env.String("SENTRYPROXY_LOG_LEVEL", logger.LogLevelInfo),
		LogDir:     env.String("SENTRYPROXY_LOG_DIR", "logs"),
		Theme:      env.String("SENTRYPROXY_THEME", "default"),
		MaxSize:    env.Int("SENTRYPROXY_LOG_MAX_SIZE_MB", 100),
		MaxBackups: env.Int("SENTRYPROXY_LOG_MAX_BACKUPS", 3),
		MaxAge:     env.Int("SENTRYPROXY_LOG_MAX_AGE_DAYS", 28),
		FileOutput: env.Bool("SENTRYPROXY_LOG_FILE", false),
		PrettyLogs: env.Bool("SENTRYPROXY_LOG_PRETTY", true),
	}

	base, styled, cleanup, err := logger.NewWithTheme(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentryproxy: failed to start logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	fmt.Println(theme.ColourSplash("sentryproxy"), theme.ColourVersion("dev"))

	application := app.New(base, styled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := config.New(*configPath, application.WatcherCallback(ctx), styled)
	if err != nil {
		logger.FatalWithLogger(base, "failed to load config", "path", *configPath, "error", err)
	}
	application.ApplyRoutes(ctx, watcher.Current().Routes)

	go watcher.Run(ctx)

	styled.Info("sentryproxy: listening", "routes", len(watcher.Current().Routes))

	<-ctx.Done()
	styled.Info("sentryproxy: shutting down")
	application.Shutdown()

	snap := nerdstats.Snapshot(startTime)
	styled.Info("sentryproxy: final stats",
		"uptime", format.Duration(snap.Uptime),
		"heap", format.Bytes(snap.HeapAlloc),
		"goroutines", snap.NumGoroutines,
	)
}
