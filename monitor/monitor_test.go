package monitor

import (
	"context"
	"errors"
	"testing"

	"flight-deals-bot/config"
	"flight-deals-bot/models"
	"flight-deals-bot/reconcile"
)

type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(url string) (string, error) {
	f.calls++
	return f.html, f.err
}

type fakeParser struct {
	offers []models.Offer
	err    error
}

func (p *fakeParser) ParseHTML(htmlContent string, sourceURL string) ([]models.Offer, error) {
	return p.offers, p.err
}

type fakeReconciler struct {
	applied [][]models.Offer
	err     error
}

func (r *fakeReconciler) Apply(ctx context.Context, offers []models.Offer) (reconcile.Result, error) {
	r.applied = append(r.applied, offers)
	if r.err != nil {
		return reconcile.Result{}, r.err
	}
	return reconcile.Result{Inserted: len(offers)}, nil
}

func floatPtr(v float64) *float64 { return &v }

func testMonitor(f *fakeFetcher, p *fakeParser, r *fakeReconciler) *Monitor {
	cfg := config.GetDefaultConfig()
	cfg.Source.URL = "https://example.test/deals"
	return NewMonitor(cfg, f, p, r)
}

func TestRunCycleAppliesParsedOffers(t *testing.T) {
	offers := []models.Offer{
		{Destination: "אתונה", GoDate: "2025-11-20", Amount: floatPtr(299), Currency: "₪"},
	}
	f := &fakeFetcher{html: "<html></html>"}
	r := &fakeReconciler{}
	m := testMonitor(f, &fakeParser{offers: offers}, r)

	if err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls)
	}
	if len(r.applied) != 1 || len(r.applied[0]) != 1 {
		t.Fatalf("reconciler applied = %v, want one batch of one offer", r.applied)
	}
	if r.applied[0][0].Destination != "אתונה" {
		t.Errorf("applied destination = %q", r.applied[0][0].Destination)
	}
}

func TestRunCycleFetchFailureLeavesStorageAlone(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	r := &fakeReconciler{}
	m := testMonitor(f, &fakeParser{}, r)

	if err := m.RunCycle(context.Background()); err == nil {
		t.Fatal("RunCycle() expected error, got nil")
	}
	if len(r.applied) != 0 {
		t.Errorf("reconciler was called after fetch failure")
	}
}

func TestRunCycleZeroOffersSkipsReconciliation(t *testing.T) {
	f := &fakeFetcher{html: "<html><body>maintenance</body></html>"}
	r := &fakeReconciler{}
	m := testMonitor(f, &fakeParser{offers: nil}, r)

	if err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(r.applied) != 0 {
		t.Errorf("reconciler was called for an empty batch")
	}
}

func TestRunCycleParseFailure(t *testing.T) {
	f := &fakeFetcher{html: "<html></html>"}
	r := &fakeReconciler{}
	m := testMonitor(f, &fakeParser{err: errors.New("bad markup")}, r)

	if err := m.RunCycle(context.Background()); err == nil {
		t.Fatal("RunCycle() expected error, got nil")
	}
	if len(r.applied) != 0 {
		t.Errorf("reconciler was called after parse failure")
	}
}

func TestRunCycleSingleFlight(t *testing.T) {
	f := &fakeFetcher{html: "<html></html>"}
	r := &fakeReconciler{}
	m := testMonitor(f, &fakeParser{}, r)

	// Simulate a cycle already in progress
	m.running.Lock()
	defer m.running.Unlock()

	if err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if f.calls != 0 {
		t.Errorf("overlapping cycle fetched anyway")
	}
}

func TestSnippet(t *testing.T) {
	short := "hello"
	if got := snippet(short); got != short {
		t.Errorf("snippet(short) = %q", got)
	}

	long := make([]rune, snippetLimit+50)
	for i := range long {
		long[i] = 'א'
	}
	got := snippet(string(long))
	if gotRunes := []rune(got); len(gotRunes) != snippetLimit+3 {
		t.Errorf("snippet length = %d runes, want %d", len(gotRunes), snippetLimit+3)
	}
}
