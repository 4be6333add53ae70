package app

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RezaEskandarii/cronhook/internal/logger"
)

// Run loads and starts the timers of every enabled job, serves srv when it is
// not nil and blocks until ctx is done. Shutdown stops the API first, then
// the timers, and finally releases the leases this instance holds. Closing
// the stores is left to Close.
func (c *Container) Run(ctx context.Context, srv *http.Server) error {
	if err := c.Registry.Load(ctx, c.Store); err != nil {
		return errors.Wrap(err, "load jobs")
	}
	c.Registry.Start()
	c.Logger.Info("scheduler started", zap.Int(logger.FieldCount, c.Registry.Len()))

	g, gctx := errgroup.WithContext(ctx)

	if srv != nil {
		g.Go(func() error {
			c.Logger.Info("api listening", zap.String(logger.FieldAddress, srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "serve api")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return c.shutdown(srv)
	})

	return g.Wait()
}

func (c *Container) shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Config.ShutdownTimeout)
	defer cancel()

	c.Logger.Info("shutting down")
	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, "stop api"))
		}
	}
	if err := c.Registry.Stop(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "stop timers"))
	}
	// Leases of firings still running are released as well, their next
	// firing may run elsewhere.
	c.LockManager.ReleaseAll(context.WithoutCancel(ctx))
	c.Logger.Info("scheduler stopped")
	return errors.Join(errs...)
}
