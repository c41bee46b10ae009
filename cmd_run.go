package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/sitephotosync/asite"
	"github.com/camden-git/sitephotosync/database"
	"github.com/camden-git/sitephotosync/inbox"
	"github.com/camden-git/sitephotosync/location"
	"github.com/camden-git/sitephotosync/media"
	"github.com/camden-git/sitephotosync/ocr"
	"github.com/camden-git/sitephotosync/reconcile"
	"github.com/camden-git/sitephotosync/repository"
	"github.com/camden-git/sitephotosync/services"
	"github.com/camden-git/sitephotosync/traversal"
	"github.com/camden-git/sitephotosync/vision"
	"github.com/camden-git/sitephotosync/workers"
)

var runFlags struct {
	block    string
	level    string
	plot     string
	fresh    bool
	skipSort bool
}

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Move chat photos into the inbox and sort them into location folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := sortInbox(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary{Sort: &stats}))
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sort new photos, then walk the quality plan and upload them",
	Long: `run sorts the inbox, stages the sorted photos in the archive, removes exact
local duplicates and walks the quality plan of the inspection site. Each plot
with staged photos is reconciled against its remote form and the photos the
form does not hold are uploaded.

Without filters the run resumes after the last location dispatched by a
previous run. --block, --level and --plot start from an explicit position
instead; --fresh ignores the saved resume point.`,
	RunE: runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.block, "block", "", "start at this block letter (A-G)")
	f.StringVar(&runFlags.level, "level", "", "start at this level number")
	f.StringVar(&runFlags.plot, "plot", "", "start at this plot number")
	f.BoolVar(&runFlags.fresh, "fresh", false, "ignore the saved resume point")
	f.BoolVar(&runFlags.skipSort, "skip-sort", false, "do not sort the inbox before the run")
}

func sortInbox(ctx context.Context) (workers.SortStats, error) {
	moved, err := inbox.Transfer(cfg.ChatsDirectory, cfg.InboxDirectory, logger)
	if err != nil {
		return workers.SortStats{}, err
	}
	logger.Info("transferred chat photos", zap.Int("photos", moved))

	tables, err := location.LoadTables(cfg.PlotTablePath, cfg.WindowTablePath)
	if err != nil {
		return workers.SortStats{}, err
	}
	logger.Info("loaded lookup tables", zap.Int("plots", tables.PlotCount()), zap.Int("windows", tables.WindowCount()))

	extractor := ocr.NewTesseractExtractor(cfg.TesseractBin, vision.NewLabelMask(), logger)
	proc := workers.NewSortProcessor(extractor, location.NewNormalizer(tables, logger),
		cfg.SortedDirectory, cfg.SortQueueSize, cfg.NumSortWorkers, logger)
	defer proc.Stop()

	return proc.SortDirectory(ctx, cfg.InboxDirectory)
}

// stage moves sorted photos into the archive and builds the bucket of
// photos waiting for upload.
func stage() (*media.Archive, *media.Bucket, error) {
	archive, err := media.NewArchive(cfg.BaseDirectory, cfg.Layout, cfg.QuarantineDirectory, cfg.DownloadDirectory, logger)
	if err != nil {
		return nil, nil, err
	}
	intake, err := archive.Intake(cfg.SortedDirectory)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("staged sorted photos", zap.Int("locations", len(intake.Moved)), zap.Int("unsorted", intake.Unsorted))

	bucket, err := archive.CollectBuckets()
	if err != nil {
		return nil, nil, err
	}
	dedup, err := archive.DedupLocal(bucket, cfg.ExactDigestSize)
	if err != nil {
		return nil, nil, err
	}
	if len(dedup.Unreadable) > 0 {
		logger.Warn("unreadable staged photos", zap.Strings("paths", dedup.Unreadable))
	}
	return archive, bucket, nil
}

func openDatabases() (*sql.DB, *gorm.DB, error) {
	db, err := database.InitDB(cfg.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	gdb, err := database.InitGormDB(cfg.DatabasePath, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := database.AutoMigrateModels(gdb); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, gdb, nil
}

// resumePoint picks the traversal filters: explicit flags first, then the
// saved checkpoint unless fresh is set.
func resumePoint(ctx context.Context, store traversal.CheckpointStore, block, level, plot string, fresh bool) (traversal.Checkpoint, error) {
	if block != "" || level != "" || plot != "" {
		return traversal.NewCheckpoint(block, level, plot)
	}
	if fresh || store == nil {
		return traversal.Checkpoint{}, nil
	}
	saved, ok, err := store.LoadCheckpoint(ctx)
	if err != nil || !ok {
		return traversal.Checkpoint{}, err
	}
	return saved.Checkpoint(), nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, gdb, err := openDatabases()
	if err != nil {
		return err
	}
	defer db.Close()
	store := database.NewCheckpointStore(db)

	cp, err := resumePoint(ctx, store, runFlags.block, runFlags.level, runFlags.plot, runFlags.fresh)
	if err != nil {
		return err
	}

	var sorted *workers.SortStats
	if !runFlags.skipSort {
		stats, err := sortInbox(ctx)
		if err != nil {
			return err
		}
		sorted = &stats
	}

	archive, bucket, err := stage()
	if err != nil {
		return err
	}
	if bucket.Len() == 0 {
		logger.Info("no photos staged for upload")
		fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary{Sort: sorted}))
		return nil
	}

	if err := os.MkdirAll(cfg.DownloadDirectory, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	browser, err := asite.Open(ctx, asite.Options{
		SiteURL:           cfg.SiteURL,
		Login:             cfg.SiteLogin,
		Password:          cfg.SitePassword,
		Bin:               cfg.BrowserBin,
		ControlURL:        cfg.BrowserControlURL,
		Headless:          cfg.BrowserHeadless,
		NavigationTimeout: cfg.NavigationTimeout,
		ElementTimeout:    cfg.ElementTimeout,
		UploadTimeout:     cfg.UploadTimeout,
		FormColumn:        cfg.FormColumn,
	}, logger)
	if err != nil {
		return err
	}
	defer browser.Close()

	reconciler := reconcile.New(media.NewDetector(cfg.DuplicateThreshold), cfg.PhotoCapacity, logger)
	dispatcher := services.NewDispatcher(browser, browser, archive, reconciler, repository.NewUploadRepository(gdb), logger)
	controller := traversal.NewController(browser, dispatcher, store, traversal.Options{
		StartRow:        cfg.StartRow,
		MaxReadFailures: cfg.MaxRowReadFailures,
	}, logger)

	report, runErr := controller.Run(ctx, bucket, cp)
	if sorted != nil {
		for _, o := range sorted.Unclassified {
			report.Add(o)
		}
	}
	if err := repository.NewRunRepository(gdb).SaveReport(report, runErr); err != nil {
		logger.Error("failed to save run report", zap.String("run_id", report.RunID), zap.Error(err))
	}

	fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary{Sort: sorted, Report: report}))
	return runErr
}
