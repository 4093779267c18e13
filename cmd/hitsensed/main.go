package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/hitsense/internal/config"
	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/injector"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code. Deferred flushes complete before it
// returns, so main may exit right after.
func run(ctx context.Context, args []string, stdin io.Reader, stderr io.Writer) int {
	fs := flag.NewFlagSet("hitsensed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "settings file (default ./hitsense.{json,yaml})")
	noKeys := fs.Bool("no-keys", false, "do not read reload keys from stdin")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "Error loading settings:", err)
		return 1
	}

	daemon, err := injector.InitializeDaemon(settings)
	if err != nil {
		fmt.Fprintln(stderr, "Error assembling daemon:", err)
		return 1
	}
	defer func() { _ = log.Provide().Sync() }()

	// SIGHUP reloads thresholds the same way the R key does
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				daemon.Runner.RequestReload()
			}
		}
	}()

	keys := stdin
	if *noKeys {
		keys = nil
	}

	daemon.Logger.Info("hitsense starting",
		log.String("http", settings.Bridge.HTTPAddr),
		log.Bool("quic", settings.Bridge.QUICEnabled),
		log.String("thresholds", settings.Thresholds.Path))

	if err := daemon.Run(ctx, keys); err != nil {
		daemon.Logger.Error("hitsense stopped with error", log.Error(err))
		return 1
	}
	daemon.Logger.Info("hitsense stopped")
	return 0
}
