package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"entitlement-manager/core/blobstore"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *StaticCatalog {
	t.Helper()
	c, err := NewCatalog(
		Product{ID: "remove_ads", Kind: KindOneTime},
		Product{ID: "standard_sub", Kind: KindSubscription},
		Product{ID: "t1", Kind: KindConsumable},
	)
	require.NoError(t, err)
	return c
}

func purchased(productID, token string, at time.Time) PurchaseReport {
	return PurchaseReport{
		ProductIDs:    []string{productID},
		PurchaseToken: token,
		State:         StatePurchased,
		PurchaseTime:  at,
	}
}

func fastConfig() FinalizeConfig {
	return FinalizeConfig{MaxAttempts: 3, BaseDelayMS: 1, MaxDelayMS: 2, StorageAttempts: 2, Concurrency: 4}
}

// fakeFinalizer answers calls from a per-token script of errors; an exhausted
// script answers with final.
type fakeFinalizer struct {
	mu      sync.Mutex
	script  map[string][]error
	final   map[string]error
	calls   []string
	done    map[string]bool
	block   chan struct{}
	entered chan struct{}
}

func newFakeFinalizer() *fakeFinalizer {
	return &fakeFinalizer{script: map[string][]error{}, final: map[string]error{}, done: map[string]bool{}}
}

func (f *fakeFinalizer) call(ctx context.Context, kind string, req FinalizeRequest) error {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind+":"+req.Token)

	if s := f.script[req.Token]; len(s) > 0 {
		f.script[req.Token] = s[1:]
		if s[0] != nil {
			return s[0]
		}
	} else if err, ok := f.final[req.Token]; ok {
		return err
	}
	if f.done[req.Token] {
		return &ProviderError{Code: CodeAlreadyFinalized}
	}
	f.done[req.Token] = true
	return nil
}

func (f *fakeFinalizer) Acknowledge(ctx context.Context, req FinalizeRequest) error {
	return f.call(ctx, "ack", req)
}

func (f *fakeFinalizer) Consume(ctx context.Context, req FinalizeRequest) error {
	return f.call(ctx, "consume", req)
}

func (f *fakeFinalizer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// failingBacking fails every Put while failPuts is set.
type failingBacking struct {
	*blobstore.Memory
	mu       sync.Mutex
	failPuts bool
	puts     int
}

func (b *failingBacking) Put(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.puts++
	fail := b.failPuts
	b.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return b.Memory.Put(ctx, key, value)
}

type recordingJournal struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (j *recordingJournal) Record(_ context.Context, a Attempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, a)
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []*Snapshot
}

func (p *recordingPublisher) Publish(_ context.Context, s *Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, s)
	return nil
}

func (p *recordingPublisher) Last() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.snapshots) == 0 {
		return nil
	}
	return p.snapshots[len(p.snapshots)-1]
}

type fakeSource struct {
	mu      sync.Mutex
	reports map[ProductType][]PurchaseReport
	err     error
}

func (s *fakeSource) QueryPurchases(_ context.Context, _ string, t ProductType) ([]PurchaseReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]PurchaseReport(nil), s.reports[t]...), nil
}

type fakeLauncher struct {
	launched []string
}

func (l *fakeLauncher) LaunchPurchaseFlow(_ context.Context, userID, productID string) error {
	l.launched = append(l.launched, userID+"/"+productID)
	return nil
}
