package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"memoire/internal/extractor"
	"memoire/internal/models"
	"memoire/internal/store"
	"memoire/internal/vectorengine"
)

// RealtimeItem is one segment waiting on the real-time queue.
type RealtimeItem struct {
	Timestamp  string
	Auteur     models.Author
	Texte      string
	TokenStart int
	ReceivedAt time.Time
}

// OnProcessed is invoked after each item is inserted (or skipped as
// non-indexable), for callers that want per-segment observability.
type OnProcessed func(item RealtimeItem, seg *models.Segment)

// RealtimeConfig tunes the single-consumer worker.
type RealtimeConfig struct {
	// QueueSize bounds the buffered channel; Put blocks once full, giving
	// natural backpressure instead of unbounded growth.
	QueueSize int
	// IdleThreshold is how long the worker waits with nothing to do
	// before firing IdleCallback (default 5s).
	IdleThreshold time.Duration
	// TokenEndEstimate approximates token_end for a real-time segment,
	// since the true count isn't known until the next turn arrives.
	TokenEndEstimate int
	SourceFile       string
	SourceOrigine    string
}

// DefaultRealtimeConfig returns sane defaults for the single-consumer worker.
func DefaultRealtimeConfig() RealtimeConfig {
	return RealtimeConfig{
		QueueSize:        64,
		IdleThreshold:    5 * time.Second,
		TokenEndEstimate: 100,
		SourceFile:       "realtime",
		SourceOrigine:    "realtime",
	}
}

// RealtimeIndexer is a bounded single-consumer queue: Put enqueues a turn as
// it arrives, a single worker goroutine extracts and inserts it in strict
// FIFO order. Unlike the bulk path, no significant-change filter applies —
// every indexable item is inserted.
// RealtimeIndexer never inserts candidate entities: the real-time path only
// ever performs the metadata insert, leaving candidate capture to the bulk
// path.
type RealtimeIndexer struct {
	extractor *extractor.Client
	segments  *store.SegmentRepository
	vecEngine *vectorengine.Engine
	log       *logrus.Logger

	cfg RealtimeConfig

	OnProcessed   OnProcessed
	IdleCallback  func()

	queue    chan RealtimeItem
	stop     chan struct{}
	done     chan struct{}
	startMu  sync.Mutex
	started  bool

	mu           sync.Mutex
	lastActivity time.Time
	received     int
	processed    int
}

// NewRealtimeIndexer wires a RealtimeIndexer from its collaborators.
func NewRealtimeIndexer(
	client *extractor.Client,
	segments *store.SegmentRepository,
	vecEngine *vectorengine.Engine,
	log *logrus.Logger,
	cfg RealtimeConfig,
) *RealtimeIndexer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = 5 * time.Second
	}
	return &RealtimeIndexer{
		extractor:    client,
		segments:     segments,
		vecEngine:    vecEngine,
		log:          log,
		cfg:          cfg,
		queue:        make(chan RealtimeItem, cfg.QueueSize),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		lastActivity: time.Now(),
	}
}

// Put enqueues a turn. Blocks if the queue is at capacity.
func (r *RealtimeIndexer) Put(timestamp string, auteur models.Author, texte string, tokenStart int) {
	r.mu.Lock()
	r.received++
	r.lastActivity = time.Now()
	r.mu.Unlock()

	r.queue <- RealtimeItem{
		Timestamp:  timestamp,
		Auteur:     auteur,
		Texte:      texte,
		TokenStart: tokenStart,
		ReceivedAt: time.Now(),
	}
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (r *RealtimeIndexer) Start(ctx context.Context) {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.started {
		return
	}
	r.started = true
	go r.workerLoop(ctx)
}

// Stop signals the worker to drain and exit, waiting up to timeout for it
// to finish (scribe's `_worker_thread.join(timeout=10)`).
func (r *RealtimeIndexer) Stop(timeout time.Duration) {
	close(r.stop)
	select {
	case <-r.done:
	case <-time.After(timeout):
		r.log.Warn("indexer: realtime worker did not stop within timeout")
	}
}

// Pending reports how many items are waiting in the queue.
func (r *RealtimeIndexer) Pending() int {
	return len(r.queue)
}

// Stats reports how many items have been enqueued and fully processed.
func (r *RealtimeIndexer) Stats() (received, processed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received, r.processed
}

func (r *RealtimeIndexer) workerLoop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.IdleThreshold)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.drain(ctx)
			return
		case item := <-r.queue:
			r.process(ctx, item)
		case <-ticker.C:
			r.mu.Lock()
			idleFor := time.Since(r.lastActivity)
			r.mu.Unlock()
			if idleFor > r.cfg.IdleThreshold && r.IdleCallback != nil {
				r.IdleCallback()
				r.mu.Lock()
				r.lastActivity = time.Now()
				r.mu.Unlock()
			}
		}
	}
}

// drain processes whatever remains in the queue without blocking on new
// arrivals, so Stop completes deterministically.
func (r *RealtimeIndexer) drain(ctx context.Context) {
	for {
		select {
		case item := <-r.queue:
			r.process(ctx, item)
		default:
			return
		}
	}
}

func (r *RealtimeIndexer) process(ctx context.Context, item RealtimeItem) {
	rec, err := r.extractor.Extract(ctx, cleanSegment(item.Texte))
	if err != nil {
		r.log.WithError(err).Warn("indexer: realtime extraction failed")
		return
	}

	var seg *models.Segment
	if rec.Indexable {
		seg, err = r.insert(ctx, item, rec)
		if err != nil {
			r.log.WithError(err).Warn("indexer: realtime insert failed")
			return
		}
	}

	r.mu.Lock()
	r.processed++
	r.mu.Unlock()

	if r.OnProcessed != nil {
		r.OnProcessed(item, seg)
	}
}

func (r *RealtimeIndexer) insert(ctx context.Context, item RealtimeItem, rec models.ExtractorRecord) (*models.Segment, error) {
	seg := &models.Segment{
		SourceFile:        r.cfg.SourceFile,
		SourceNature:      "trace",
		SourceFormat:      "txt",
		SourceOrigine:     r.cfg.SourceOrigine,
		Auteur:            item.Auteur,
		EmotionValence:    rec.EmotionValence,
		EmotionActivation: rec.EmotionActivation,
		TagsRoget:         rec.TagsRoget,
		Personnes:         rec.Personnes,
		Projets:           rec.Projets,
		Sujets:            rec.Sujets,
		Lieux:             rec.Lieux,
		ResumeTexte:       rec.ResumeTexte,
		GrID:              rec.GrID,
		ConfidenceScore:   rec.ConfidenceScore,
		StatutVerite:      models.TruthUnknown,
		ExtractorVersion:  "memoire-scribe-realtime",
		Modele:            "extractor",
		TokenStart:        item.TokenStart,
		TokenEnd:          item.TokenStart + r.cfg.TokenEndEstimate,
	}

	ts, err := time.Parse(time.RFC3339Nano, replaceZone(item.Timestamp))
	if err != nil {
		ts = time.Now().UTC()
	}
	seg.Timestamp = ts

	seg.Vecteur = r.vecEngine.Generate(vectorengine.Row{
		EmotionValence:       rec.EmotionValence,
		EmotionActivation:    rec.EmotionActivation,
		PhysiqueEnergie:      rec.PhysiqueEnergie,
		PhysiqueStress:       rec.PhysiqueStress,
		CognitionCertitude:   rec.CognitionCertitude,
		CognitionComplexite:  rec.CognitionComplexite,
		CognitionAbstraction: rec.CognitionAbstraction,
		CommClarte:           rec.CommClarte,
		CommFormalite:        rec.CommFormalite,
		TagsRoget:            rec.TagsRoget,
		ResumeTexte:          rec.ResumeTexte,
		Personnes:            rec.Personnes,
		Lieux:                rec.Lieux,
		Projets:              rec.Projets,
		Sujets:               rec.Sujets,
	})

	if err := r.segments.Create(ctx, seg); err != nil {
		return nil, fmt.Errorf("indexer: realtime insert segment: %w", err)
	}
	return seg, nil
}

func replaceZone(timestamp string) string {
	if len(timestamp) > 0 && timestamp[len(timestamp)-1] == 'Z' {
		return timestamp[:len(timestamp)-1] + "+00:00"
	}
	return timestamp
}
