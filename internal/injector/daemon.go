package injector

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/hitsense/internal/bridge"
	"github.com/zeusync/hitsense/internal/config"
	"github.com/zeusync/hitsense/internal/core/events/bus"
	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/core/observability/metrics"
	"github.com/zeusync/hitsense/internal/core/system"
	"github.com/zeusync/hitsense/internal/core/thresholds"
)

// Daemon is the assembled process.
type Daemon struct {
	Settings *config.Settings
	Logger   log.Log
	Metrics  *metrics.Recorder
	Bus      bus.EventBus
	Loader   *thresholds.Loader
	Runner   *system.Runner
	Server   *bridge.Server
	QUIC     *bridge.QUICIngest
	Hub      *bridge.Hub
}

// Run performs the initial thresholds load and serves until ctx is done.
// keys, when not nil, is read for "r" reload lines.
func (d *Daemon) Run(ctx context.Context, keys io.Reader) error {
	// a missing or bad document leaves the store empty; impact detection
	// stays off until a reload succeeds
	_ = d.Loader.Reload(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Runner.Run(gctx) })
	g.Go(func() error { return d.Server.Run(gctx) })
	if d.QUIC != nil {
		g.Go(func() error { return d.QUIC.Run(gctx) })
	}
	if d.Settings.Thresholds.Watch {
		g.Go(func() error {
			if err := thresholds.Watch(gctx, d.Loader.Path(), d.Runner, d.Logger); err != nil {
				d.Logger.Warn("thresholds watch disabled", log.Error(err))
			}
			return nil
		})
	}
	if d.Settings.Thresholds.Keyboard && keys != nil {
		g.Go(func() error {
			if err := thresholds.KeyTrigger(gctx, keys, d.Runner); err != nil {
				d.Logger.Warn("reload key reader stopped", log.Error(err))
			}
			return nil
		})
	}

	err := g.Wait()
	d.Hub.Detach()
	d.Bus.RemoveObserver(d.Metrics)
	return err
}
