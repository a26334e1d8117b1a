// Package monitor drives the periodic fetch-parse-reconcile cycle.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"flight-deals-bot/config"
	"flight-deals-bot/fetcher"
	"flight-deals-bot/models"
	"flight-deals-bot/reconcile"
)

// snippetLimit caps how much of an offer-less page body gets logged
const snippetLimit = 300

// Parser is the page-parsing surface the monitor needs
type Parser interface {
	ParseHTML(htmlContent string, sourceURL string) ([]models.Offer, error)
}

// Reconciler applies one parsed batch to storage
type Reconciler interface {
	Apply(ctx context.Context, offers []models.Offer) (reconcile.Result, error)
}

// Monitor runs the scrape cycle on a fixed interval. A cycle that is
// still running when the next tick fires wins; the tick is skipped
// rather than queued.
type Monitor struct {
	cfg        *config.Config
	fetcher    fetcher.Fetcher
	parser     Parser
	reconciler Reconciler

	running sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMonitor creates a new monitor
func NewMonitor(cfg *config.Config, f fetcher.Fetcher, p Parser, r Reconciler) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		cfg:        cfg,
		fetcher:    f,
		parser:     p,
		reconciler: r,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the monitor loop in a goroutine
func (m *Monitor) Start() {
	go m.run()
}

// Stop stops the monitor loop
func (m *Monitor) Stop() {
	m.cancel()
	log.Println("Monitor stopped")
}

func (m *Monitor) run() {
	// First cycle immediately, then on the interval
	if err := m.RunCycle(m.ctx); err != nil {
		log.Printf("Cycle failed: %v\n", err)
	}

	ticker := time.NewTicker(m.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunCycle(m.ctx); err != nil {
				log.Printf("Cycle failed: %v\n", err)
			}
		}
	}
}

// RunCycle performs one fetch-parse-reconcile pass. Any failure before
// reconciliation leaves storage untouched, so a flaky fetch can never
// make stored offers look stale en masse.
func (m *Monitor) RunCycle(ctx context.Context) error {
	if !m.running.TryLock() {
		log.Println("Previous cycle still running, skipping tick")
		return nil
	}
	defer m.running.Unlock()

	url := m.cfg.Source.URL
	log.Printf("Fetching %s\n", url)

	html, err := m.fetcher.Fetch(url)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	offers, err := m.parser.ParseHTML(html, url)
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	if len(offers) == 0 {
		// Likely a markup change upstream. Keep storage as-is and log
		// enough of the body to diagnose.
		log.Printf("No offers found, skipping reconciliation. Body starts: %q\n", snippet(html))
		return nil
	}

	res, err := m.reconciler.Apply(ctx, offers)
	if err != nil {
		return err
	}

	log.Printf("Cycle done: %d offers (%d inserted, %d updated, %d touched)\n",
		len(offers), res.Inserted, res.Updated, res.Touched)
	return nil
}

func snippet(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetLimit {
		return s
	}
	return string(runes[:snippetLimit]) + "..."
}
