package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/camden-git/sitephotosync/database"
	"github.com/camden-git/sitephotosync/handlers"
	"github.com/camden-git/sitephotosync/inbox"
	"github.com/camden-git/sitephotosync/location"
	"github.com/camden-git/sitephotosync/ocr"
	"github.com/camden-git/sitephotosync/realtime"
	"github.com/camden-git/sitephotosync/repository"
	"github.com/camden-git/sitephotosync/vision"
	"github.com/camden-git/sitephotosync/workers"
)

var (
	syncOnce   bool
	watchServe bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull chat exports from the SFTP host",
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, err := newSyncer()
		if err != nil {
			return err
		}
		if !syncOnce {
			return syncer.Run(cmd.Context(), cfg.SyncInterval)
		}
		stats, err := syncer.SyncOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d downloaded, %d already present, %d folders\n",
			stats.Downloaded, stats.Skipped, stats.Folders)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep pulling chat exports and sorting new inbox photos until interrupted",
	RunE:  runWatch,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload and run status API",
	RunE:  runServe,
}

func init() {
	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "sync a single time and exit")
	watchCmd.Flags().BoolVar(&watchServe, "serve", false, "also serve the status API and the live sort feed")
}

func newSyncer() (*inbox.Syncer, error) {
	if !cfg.SFTPEnabled() {
		return nil, errors.New("sftp is not configured: set SFTP_HOST, SFTP_USER and a password or key")
	}
	dial, err := inbox.SSHDialer(inbox.SSHConfig{
		Host:            cfg.SFTPHost,
		User:            cfg.SFTPUser,
		Password:        cfg.SFTPPassword,
		KeyPath:         cfg.SFTPKeyPath,
		KnownHosts:      cfg.SFTPKnownHosts,
		InsecureHostKey: cfg.SFTPInsecureHostKey,
	}, logger)
	if err != nil {
		return nil, err
	}
	return inbox.NewSyncer(dial, cfg.SFTPRemoteDirectory, cfg.ChatsDirectory, logger), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	tables, err := location.LoadTables(cfg.PlotTablePath, cfg.WindowTablePath)
	if err != nil {
		return err
	}
	extractor := ocr.NewTesseractExtractor(cfg.TesseractBin, vision.NewLabelMask(), logger)
	proc := workers.NewSortProcessor(extractor, location.NewNormalizer(tables, logger),
		cfg.SortedDirectory, cfg.SortQueueSize, cfg.NumSortWorkers, logger)
	defer proc.Stop()

	watcher, err := inbox.NewWatcher(cfg.InboxDirectory, inbox.DefaultDebounce, func(paths []string) {
		for _, p := range paths {
			if !proc.QueueJob(workers.SortJob{Path: p}) {
				logger.Debug("photo not queued", zap.String("path", p))
			}
		}
	}, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if watchServe {
		db, gdb, err := openDatabases()
		if err != nil {
			return err
		}
		defer db.Close()
		hub := realtime.NewHub(cfg.CORSAllowedOrigins, logger)
		g.Go(func() error {
			hub.Run(ctx)
			return nil
		})
		proc.SetNotifier(hub)
		serveStatus(ctx, g, statusHandler(db, gdb), hub.ServeWS)
	}

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	// photos already in the inbox do not raise events
	if _, err := proc.SortDirectory(ctx, cfg.InboxDirectory); err != nil {
		return err
	}

	if cfg.SFTPEnabled() {
		syncer, err := newSyncer()
		if err != nil {
			return err
		}
		g.Go(func() error { return syncer.Run(ctx, cfg.SyncInterval) })
	} else {
		logger.Info("sftp not configured, watching local chat exports only")
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			if _, err := inbox.Transfer(cfg.ChatsDirectory, cfg.InboxDirectory, logger); err != nil {
				logger.Warn("chat transfer failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if stats := proc.TakeStats(); stats.Total() > 0 {
					logger.Info("sorted inbox photos",
						zap.Int("sorted", stats.Total()-stats.Unsorted-stats.Failed),
						zap.Int("unsorted", stats.Unsorted),
						zap.Int("failed", stats.Failed))
				}
			}
		}
	})

	logger.Info("watching inbox", zap.String("dir", cfg.InboxDirectory))
	return g.Wait()
}

func statusHandler(db *sql.DB, gdb *gorm.DB) *handlers.StatusHandler {
	return &handlers.StatusHandler{
		Uploads:     repository.NewUploadRepository(gdb),
		Runs:        repository.NewRunRepository(gdb),
		Checkpoints: database.NewCheckpointStore(db),
		Log:         logger,
	}
}

// serveStatus runs the status API in g until ctx is done.
func serveStatus(ctx context.Context, g *errgroup.Group, status *handlers.StatusHandler, events http.HandlerFunc) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(status, events, cfg.CORSAllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("status api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status api failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	db, gdb, err := openDatabases()
	if err != nil {
		return err
	}
	defer db.Close()

	g, ctx := errgroup.WithContext(cmd.Context())
	serveStatus(ctx, g, statusHandler(db, gdb), nil)
	return g.Wait()
}
