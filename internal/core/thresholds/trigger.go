package thresholds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/zeusync/hitsense/internal/core/observability/log"
)

// Requester receives reload requests. The tick runner implements it so the
// reload itself runs on the tick goroutine.
type Requester interface {
	RequestReload()
}

// KeyTrigger requests a reload for every input line equal to "r" or "R".
// It returns when the reader is exhausted or the context ends.
func KeyTrigger(ctx context.Context, r io.Reader, req Requester) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			if strings.EqualFold(strings.TrimSpace(line), "r") {
				req.RequestReload()
			}
		}
	}
}

// Watch requests a reload whenever the document at path is written, created
// or renamed into place. The parent directory is watched so editors that
// replace files atomically are still seen.
func Watch(ctx context.Context, path string, req Requester, logger log.Log) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if err = w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				logger.Debug("thresholds document changed", log.String("op", ev.Op.String()))
				req.RequestReload()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("thresholds watcher error", log.Error(werr))
		}
	}
}
