package health

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is anything that can cheaply prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports the store unhealthy when Ping fails.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// WritableDirCheck fails when a file cannot be created in dir. Backups and
// restores write next to the store file.
func WritableDirCheck(dir string) CheckFunc {
	return func(_ context.Context) error {
		f, err := os.CreateTemp(dir, ".healthz-*")
		if err != nil {
			return errors.Wrapf(err, "create file in %s", filepath.Clean(dir))
		}
		name := f.Name()
		_ = f.Close()
		return os.Remove(name)
	}
}

// GoroutineCountCheck fails when more than threshold goroutines run, which
// usually means handlers are piling up on the store lock.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("%d goroutines, limit %d", n, threshold)
		}
		return nil
	}
}
