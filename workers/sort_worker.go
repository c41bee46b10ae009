package workers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/location"
	"github.com/camden-git/sitephotosync/media"
	"github.com/camden-git/sitephotosync/ocr"
	"github.com/camden-git/sitephotosync/realtime"
	"github.com/camden-git/sitephotosync/traversal"
)

var ErrStopped = errors.New("sort processor stopped")

// Notifier receives one event per photo handled. *realtime.Hub is one.
type Notifier interface {
	Broadcast(event realtime.Event)
}

type SortJob struct {
	Path string
}

// SortStats counts what the workers did since the last TakeStats.
type SortStats struct {
	Sorted   map[string]int
	Unsorted int
	Failed   int

	// Unclassified lists photos moved to the unsorted folder and why.
	Unclassified []traversal.Outcome
}

func newSortStats() SortStats {
	return SortStats{Sorted: make(map[string]int)}
}

// Total is the number of photos handled, failed ones included.
func (s SortStats) Total() int {
	n := s.Unsorted + s.Failed
	for _, c := range s.Sorted {
		n += c
	}
	return n
}

// SortProcessor reads the label of inbox photos and moves each into
// sortedDir/<code>/, or sortedDir/unsorted/ when the label can't be mapped.
// Photos whose text could not be extracted stay where they are.
type SortProcessor struct {
	JobQueue chan SortJob
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	extractor  ocr.Extractor
	normalizer *location.Normalizer
	sortedDir  string
	log        *zap.Logger
	notifier   Notifier

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	stopOnce sync.Once
	stats    SortStats
}

func NewSortProcessor(extractor ocr.Extractor, normalizer *location.Normalizer, sortedDir string, queueSize, numWorkers int, logger *zap.Logger) *SortProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	sp := &SortProcessor{
		JobQueue:   make(chan SortJob, queueSize),
		StopChan:   make(chan struct{}),
		Pending:    make(map[string]bool),
		extractor:  extractor,
		normalizer: normalizer,
		sortedDir:  sortedDir,
		log:        logger.Named("workers.sort"),
		ctx:        ctx,
		cancel:     cancel,
		stats:      newSortStats(),
	}
	sp.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go sp.worker(i)
	}
	sp.log.Info("started sort workers", zap.Int("workers", numWorkers), zap.Int("queue_size", queueSize))
	return sp
}

func (sp *SortProcessor) worker(id int) {
	defer sp.Wg.Done()
	for {
		select {
		case job, ok := <-sp.JobQueue:
			if !ok {
				return
			}
			sp.process(id, job)
			sp.Mutex.Lock()
			delete(sp.Pending, job.Path)
			sp.Mutex.Unlock()
			sp.inflight.Done()
		case <-sp.StopChan:
			sp.log.Debug("sort worker stopping", zap.Int("worker", id))
			return
		}
	}
}

func (sp *SortProcessor) process(id int, job SortJob) {
	log := sp.log.With(zap.Int("worker", id), zap.String("photo", filepath.Base(job.Path)))

	text, err := sp.extractor.ExtractText(sp.ctx, job.Path)
	if err != nil {
		log.Warn("text extraction failed, leaving photo in inbox", zap.Error(err))
		sp.Mutex.Lock()
		sp.stats.Failed++
		sp.Mutex.Unlock()
		sp.notify(realtime.Event{Type: realtime.EventSort, Path: filepath.Base(job.Path), Status: realtime.StatusFailed, Error: err.Error()})
		return
	}

	res := sp.normalizer.Classify(text)
	folder := res.Folder()
	if _, err := media.MoveInto(job.Path, filepath.Join(sp.sortedDir, folder)); err != nil {
		log.Error("failed to move photo", zap.String("folder", folder), zap.Error(err))
		sp.Mutex.Lock()
		sp.stats.Failed++
		sp.Mutex.Unlock()
		sp.notify(realtime.Event{Type: realtime.EventSort, Path: filepath.Base(job.Path), Status: realtime.StatusFailed, Error: err.Error()})
		return
	}

	if res.OK() {
		sp.notify(realtime.Event{Type: realtime.EventSort, Path: filepath.Base(job.Path), Code: folder, Status: realtime.StatusSorted})
	} else {
		sp.notify(realtime.Event{Type: realtime.EventSort, Path: filepath.Base(job.Path), Status: realtime.StatusUnsorted, Error: res.Err.Error()})
	}

	sp.Mutex.Lock()
	defer sp.Mutex.Unlock()
	if !res.OK() {
		log.Info("photo unclassified", zap.String("text", res.Text), zap.Error(res.Err))
		sp.stats.Unsorted++
		sp.stats.Unclassified = append(sp.stats.Unclassified, traversal.Outcome{
			Code:   location.UnsortedFolder,
			Kind:   traversal.OutcomeClassificationFailed,
			Reason: fmt.Sprintf("%s: %v", filepath.Base(job.Path), res.Err),
		})
		return
	}
	log.Info("photo sorted", zap.String("code", folder), zap.Stringer("via", res.Kind))
	sp.stats.Sorted[folder]++
}

// SetNotifier makes the workers report every handled photo to n.
func (sp *SortProcessor) SetNotifier(n Notifier) {
	sp.Mutex.Lock()
	defer sp.Mutex.Unlock()
	sp.notifier = n
}

func (sp *SortProcessor) notify(event realtime.Event) {
	sp.Mutex.Lock()
	n := sp.notifier
	sp.Mutex.Unlock()
	if n != nil {
		n.Broadcast(event)
	}
}

// QueueJob queues a photo if it is not already pending. It never blocks.
func (sp *SortProcessor) QueueJob(job SortJob) bool {
	if sp.stopped() || !sp.markPending(job.Path) {
		return false
	}
	sp.inflight.Add(1)
	select {
	case sp.JobQueue <- job:
		return true
	default:
		sp.log.Warn("sort queue full, dropping photo", zap.String("path", job.Path))
		sp.unmarkPending(job.Path)
		sp.inflight.Done()
		return false
	}
}

// Submit queues a photo, waiting for room in the queue.
func (sp *SortProcessor) Submit(ctx context.Context, job SortJob) error {
	if sp.stopped() {
		return ErrStopped
	}
	if !sp.markPending(job.Path) {
		return nil
	}
	sp.inflight.Add(1)
	select {
	case sp.JobQueue <- job:
		return nil
	case <-ctx.Done():
		sp.unmarkPending(job.Path)
		sp.inflight.Done()
		return ctx.Err()
	case <-sp.StopChan:
		sp.unmarkPending(job.Path)
		sp.inflight.Done()
		return ErrStopped
	}
}

func (sp *SortProcessor) stopped() bool {
	select {
	case <-sp.StopChan:
		return true
	default:
		return false
	}
}

func (sp *SortProcessor) markPending(path string) bool {
	sp.Mutex.Lock()
	defer sp.Mutex.Unlock()
	if sp.Pending[path] {
		return false
	}
	sp.Pending[path] = true
	return true
}

func (sp *SortProcessor) unmarkPending(path string) {
	sp.Mutex.Lock()
	delete(sp.Pending, path)
	sp.Mutex.Unlock()
}

// Flush waits until every queued photo has been handled.
func (sp *SortProcessor) Flush() {
	sp.inflight.Wait()
}

// TakeStats returns the counters and resets them.
func (sp *SortProcessor) TakeStats() SortStats {
	sp.Mutex.Lock()
	defer sp.Mutex.Unlock()
	stats := sp.stats
	sp.stats = newSortStats()
	return stats
}

// SortDirectory queues every image in dir and waits for all of them.
func (sp *SortProcessor) SortDirectory(ctx context.Context, dir string) (SortStats, error) {
	paths, err := media.ListImages(dir)
	if err != nil {
		return SortStats{}, err
	}
	for _, p := range paths {
		if err := sp.Submit(ctx, SortJob{Path: p}); err != nil {
			sp.Flush()
			return sp.TakeStats(), err
		}
	}
	sp.Flush()
	stats := sp.TakeStats()
	sp.log.Info("sorted inbox",
		zap.String("dir", dir),
		zap.Int("photos", len(paths)),
		zap.Int("locations", len(stats.Sorted)),
		zap.Int("unsorted", stats.Unsorted),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// Stop stops the workers. Queued photos that were not picked up yet are
// left in the inbox.
func (sp *SortProcessor) Stop() {
	sp.stopOnce.Do(func() {
		sp.cancel()
		close(sp.StopChan)
		sp.Wg.Wait()
		sp.log.Info("sort workers stopped")
	})
}
