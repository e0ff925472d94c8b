package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/assetmig/internal/metrics"
	"github.com/persistorai/assetmig/internal/models"
)

// JournalRecorder persists journal entries.
type JournalRecorder interface {
	Record(ctx context.Context, e models.JournalEntry) error
}

// JournalWorker buffers journal entries and writes them via a single worker goroutine.
type JournalWorker struct {
	recorder JournalRecorder
	log      *logrus.Logger
	jobs     chan models.JournalEntry
}

// NewJournalWorker creates a JournalWorker with the given queue capacity.
func NewJournalWorker(recorder JournalRecorder, log *logrus.Logger, queueSize int) *JournalWorker {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &JournalWorker{
		recorder: recorder,
		log:      log,
		jobs:     make(chan models.JournalEntry, queueSize),
	}
}

// Enqueue adds an entry. Non-blocking; drops the entry if the queue is full.
func (w *JournalWorker) Enqueue(e models.JournalEntry) {
	select {
	case w.jobs <- e:
		metrics.JournalQueueDepth.Inc()
	default:
		w.log.WithField("path", e.Path).Warn("journal queue full, dropping entry")
	}
}

// Run processes entries until the context is cancelled, then drains remaining entries.
func (w *JournalWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case e := <-w.jobs:
			w.process(e)
		}
	}
}

func (w *JournalWorker) drain() {
	for {
		select {
		case e := <-w.jobs:
			w.process(e)
		default:
			return
		}
	}
}

func (w *JournalWorker) process(e models.JournalEntry) {
	metrics.JournalQueueDepth.Dec()
	if err := w.recorder.Record(context.Background(), e); err != nil {
		w.log.WithError(err).WithField("path", e.Path).Warn("journal record failed")
	}
}
