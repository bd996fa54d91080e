// Package poller keeps the latest order list of the store in memory.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

const (
	DefaultInterval   = 15 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

type Fetcher interface {
	FetchOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error)
}

// Snapshot is one fetched order list. A failed refresh keeps the previous
// orders and sets Err.
type Snapshot struct {
	Orders    []orders.Order `json:"orders"`
	FetchedAt time.Time      `json:"fetched_at"`
	Err       error          `json:"-"`
	Version   uint64         `json:"version"`
}

// Store mirrors snapshots outside the process so a restart can serve the
// last list before the first fetch completes.
type Store interface {
	SaveSnapshot(ctx context.Context, s Snapshot) error
	LoadSnapshot(ctx context.Context) (Snapshot, bool, error)
}

type Options struct {
	Interval   time.Duration
	Retries    int
	RetryDelay time.Duration
	Filter     orders.Filter
	// Ready gates every tick; a non-nil error skips the fetch.
	Ready func(ctx context.Context) error
	Store Store
	Log   *slog.Logger
}

type Poller struct {
	fetch Fetcher
	opts  Options
	kick  chan struct{}

	mu   sync.RWMutex
	snap Snapshot
	subs map[chan Snapshot]struct{}
}

func New(f Fetcher, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Poller{
		fetch: f,
		opts:  opts,
		kick:  make(chan struct{}, 1),
		snap:  Snapshot{Err: errNotFetched},
		subs:  map[chan Snapshot]struct{}{},
	}
}

var errNotFetched = errors.New("orders not fetched yet")

// IsNotFetched reports the state before the first refresh finished.
func IsNotFetched(err error) bool { return errors.Is(err, errNotFetched) }

func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Invalidate asks Run for an immediate refresh. It never blocks; several
// calls before the refresh starts collapse into one.
func (p *Poller) Invalidate() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Subscribe returns a channel that receives every new snapshot. Slow readers
// miss intermediate snapshots.
func (p *Poller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	return ch, func() {
		p.mu.Lock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
}

// Run refreshes immediately, then on every interval tick and every
// Invalidate until ctx is done. A failed tick does not stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.warmStart(ctx)
	t := time.NewTicker(p.opts.Interval)
	defer t.Stop()

	_ = p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		case <-p.kick:
			t.Reset(p.opts.Interval)
		}
		_ = p.Refresh(ctx)
	}
}

// Refresh runs one tick: gate, fetch with retries, replace the snapshot.
func (p *Poller) Refresh(ctx context.Context) error {
	if p.opts.Ready != nil {
		if err := p.opts.Ready(ctx); err != nil {
			p.fail(err)
			return err
		}
	}

	attempt := 0
	list, err := backoff.Retry(ctx, func() ([]orders.Order, error) {
		attempt++
		list, err := p.fetch.FetchOrders(ctx, p.opts.Filter)
		if errors.Is(err, settings.ErrNotConfigured) {
			return nil, backoff.Permanent(err)
		}
		return list, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.opts.RetryDelay)),
		backoff.WithMaxTries(uint(p.opts.Retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.opts.Log.Warn("order fetch failed, retrying", "attempt", attempt, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		if ctx.Err() == nil {
			p.opts.Log.Error("order fetch failed", "attempts", attempt, "error", err)
		}
		p.fail(err)
		return err
	}
	p.replace(list)
	return nil
}

func (p *Poller) replace(list []orders.Order) {
	if list == nil {
		list = []orders.Order{}
	}
	p.mu.Lock()
	p.snap = Snapshot{Orders: list, FetchedAt: time.Now(), Version: p.snap.Version + 1}
	s := p.snap
	p.notifyLocked(s)
	p.mu.Unlock()

	if p.opts.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.opts.Store.SaveSnapshot(ctx, s); err != nil {
			p.opts.Log.Warn("snapshot mirror write failed", "error", err)
		}
	}
}

func (p *Poller) fail(err error) {
	p.mu.Lock()
	p.snap.Err = err
	p.snap.Version++
	p.notifyLocked(p.snap)
	p.mu.Unlock()
}

func (p *Poller) notifyLocked(s Snapshot) {
	for ch := range p.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (p *Poller) warmStart(ctx context.Context) {
	if p.opts.Store == nil {
		return
	}
	s, ok, err := p.opts.Store.LoadSnapshot(ctx)
	if err != nil {
		p.opts.Log.Warn("snapshot mirror read failed", "error", err)
		return
	}
	if !ok {
		return
	}
	p.mu.Lock()
	if p.snap.Version == 0 {
		s.Err = nil
		p.snap = s
	}
	p.mu.Unlock()
	p.opts.Log.Info("warm start from mirrored snapshot", "orders", len(s.Orders), "fetched_at", s.FetchedAt)
}
