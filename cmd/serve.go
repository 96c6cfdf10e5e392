package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FranLegon/drive-web/internal/database"
	"github.com/FranLegon/drive-web/internal/logger"
	"github.com/FranLegon/drive-web/internal/metrics"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
)

var serveTags = []string{"Serve"}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, settings)
		if err != nil {
			return err
		}
		defer a.close()

		servers := []*http.Server{{
			Addr:              settings.ListenAddr,
			Handler:           a.server,
			ReadHeaderTimeout: 10 * time.Second,
		}}
		if settings.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			servers = append(servers, &http.Server{
				Addr:              settings.MetricsAddr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			})
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, srv := range servers {
			srv := srv
			g.Go(func() error {
				logger.InfoTagged(serveTags, "listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		}

		g.Go(func() error {
			purgeLoop(gctx, a.db)
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			logger.InfoTagged(serveTags, "shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			var errs []error
			for _, srv := range servers {
				if err := srv.Shutdown(shutdownCtx); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		})

		return g.Wait()
	},
}

// purgeLoop removes expired sessions until ctx is done.
func purgeLoop(ctx context.Context, db *database.DB) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		purgeSessions(db)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func purgeSessions(db *database.DB) (int64, error) {
	n, err := db.PurgeExpired()
	if err != nil {
		logger.ErrorTagged(serveTags, "failed to purge sessions", zap.Error(err))
		return 0, err
	}
	metrics.RecordSessionsPurged(n)
	if n > 0 {
		logger.InfoTagged(serveTags, "purged expired sessions", zap.Int64("count", n))
	}
	return n, nil
}
