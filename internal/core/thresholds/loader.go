package thresholds

import (
	"context"
	"fmt"
	"os"

	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/internal/core/observability/metrics"
)

// DefaultPath is the thresholds document read when no path is configured.
const DefaultPath = "./settings.json"

// Loader reloads a Store from a document on disk.
type Loader struct {
	path    string
	format  Format
	store   *Store
	logger  log.Log
	metrics *metrics.Recorder
}

func NewLoader(path string, store *Store, logger log.Log, rec *metrics.Recorder) *Loader {
	if path == "" {
		path = DefaultPath
	}
	return &Loader{
		path:    path,
		format:  FormatFor(path),
		store:   store,
		logger:  logger.With(log.String("component", "thresholds"), log.String("path", path)),
		metrics: rec,
	}
}

func (l *Loader) Path() string { return l.path }

func (l *Loader) Store() *Store { return l.store }

// Reload reads and decodes the document and swaps it into the store. On any
// failure the previous thresholds stay in effect and the error is returned.
func (l *Loader) Reload(ctx context.Context) error {
	t, err := l.read()
	if err != nil {
		l.metrics.Reload(ctx, false)
		prev, ok := l.store.Load()
		fields := []log.Field{log.Error(err), log.Bool("has_previous", ok)}
		if ok {
			fields = append(fields,
				log.Float32("acc_factor", prev.AccFactor),
				log.Float32("vel_factor", prev.VelFactor))
		}
		l.logger.Warn("thresholds reload failed, keeping previous values", fields...)
		return err
	}

	l.store.Swap(t)
	l.metrics.Reload(ctx, true)
	l.logger.Info("thresholds reloaded",
		log.Float32("acc_factor", t.AccFactor),
		log.Float32("vel_factor", t.VelFactor))
	return nil
}

func (l *Loader) read() (Thresholds, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("%w: %w", ErrReadDocument, err)
	}
	return Decode(data, l.format)
}
