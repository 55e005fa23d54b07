package logger

import (
	"fmt"
	"sync"
	"time"
)

// CrawlProgressReporter logs BFS crawl progress at bounded intervals so long
// runs stay observable without flooding the log stream.
type CrawlProgressReporter struct {
	mu         sync.RWMutex
	target     int
	collected  int
	hop        int
	startTime  time.Time
	lastUpdate time.Time
	interval   time.Duration
	logger     *Logger
}

// NewCrawlProgressReporter creates a reporter for a run aiming at target
// collected keywords.
func NewCrawlProgressReporter(target int) *CrawlProgressReporter {
	return &CrawlProgressReporter{
		target:     target,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
		interval:   5 * time.Second,
		logger:     GetLogger().WithField("component", "crawl_progress"),
	}
}

// Update records the latest collected count and current hop, emitting a log
// line when the reporting interval has elapsed or the target is reached.
func (cr *CrawlProgressReporter) Update(collected, hop int) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	cr.collected = collected
	cr.hop = hop
	now := time.Now()

	if now.Sub(cr.lastUpdate) >= cr.interval || (cr.target > 0 && cr.collected >= cr.target) {
		cr.report()
		cr.lastUpdate = now
	}
}

// Complete emits a final progress line.
func (cr *CrawlProgressReporter) Complete() {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.report()
}

// report logs the current progress (must be called with lock held).
func (cr *CrawlProgressReporter) report() {
	elapsed := time.Since(cr.startTime)

	var pct float64
	if cr.target > 0 {
		pct = float64(cr.collected) / float64(cr.target) * 100
	}

	var eta string
	if cr.collected > 0 && cr.target > 0 && cr.collected < cr.target {
		perItem := elapsed / time.Duration(cr.collected)
		remaining := time.Duration(cr.target-cr.collected) * perItem
		eta = fmt.Sprintf(" (ETA: %s)", remaining.Round(time.Second))
	}

	cr.logger.WithFields(map[string]interface{}{
		"collected": cr.collected,
		"target":    cr.target,
		"hop":       cr.hop,
		"elapsed":   elapsed.Round(time.Second).String(),
	}).Info(fmt.Sprintf("crawl progress: %d/%d (%.1f%%) hop=%d%s", cr.collected, cr.target, pct, cr.hop, eta))
}

// Snapshot returns the last reported counters.
func (cr *CrawlProgressReporter) Snapshot() (collected, target, hop int) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return cr.collected, cr.target, cr.hop
}
