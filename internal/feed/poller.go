package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Poll intervals.
const (
	SocialInterval    = 2 * time.Second
	SlideshowInterval = 5 * time.Second
)

// ErrAlreadyPolling is returned by Start on a running poller.
var ErrAlreadyPolling = errors.New("poller already running")

// Fetcher retrieves a delta. since is nil on the first poll.
type Fetcher interface {
	Fetch(ctx context.Context, since *time.Time) (*Feed, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, since *time.Time) (*Feed, error)

// Fetch implements Fetcher.
func (f FetchFunc) Fetch(ctx context.Context, since *time.Time) (*Feed, error) {
	return f(ctx, since)
}

// State is the poller lifecycle state.
type State int

// Poller states.
const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	if s == StatePolling {
		return "polling"
	}
	return "idle"
}

// Update is delivered to OnUpdate after each applied response.
type Update struct {
	Seq       uint64
	Panic     bool
	Items     []Item
	Watermark time.Time
	// Added holds the items of Items not shown before this update, in display order.
	// A re-approved older item can sort above them.
	Added []Item
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval defaults to SocialInterval.
	Interval time.Duration
	// Cap bounds the displayed items; defaults to SocialFeedCap.
	Cap int
	// OnUpdate receives the display state after every applied response. Calls are
	// serialized and delivered in sequence order.
	OnUpdate func(Update)
	Logger   *slog.Logger
}

// Poller polls a Fetcher on a fixed interval and folds the deltas into a capped
// display list. Fetches may overlap; a response older than the last applied one is
// dropped, and the watermark only moves forward.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	cap      int
	onUpdate func(Update)
	logger   *slog.Logger

	deliverMu sync.Mutex

	mu        sync.Mutex
	state     State
	watermark *time.Time
	items     []Item
	panic     bool
	nextSeq   uint64
	applied   uint64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPoller creates an idle Poller.
func NewPoller(fetcher Fetcher, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = SocialInterval
	}
	if cfg.Cap <= 0 {
		cfg.Cap = SocialFeedCap
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		fetcher:  fetcher,
		interval: cfg.Interval,
		cap:      cfg.Cap,
		onUpdate: cfg.OnUpdate,
		logger:   cfg.Logger,
	}
}

// Start begins polling. The first poll is issued immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePolling {
		return ErrAlreadyPolling
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = StatePolling

	p.wg.Add(1)
	go p.run(ctx)
	return nil
}

// Stop cancels polling, waits for in-flight fetches and returns to idle.
// Display state is kept so a restarted poller continues from the same watermark.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	p.state = StateIdle
	p.cancel = nil
	p.mu.Unlock()
}

// State returns the lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Items returns a copy of the current display list.
func (p *Poller) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Item(nil), p.items...)
}

// Watermark returns the current watermark; ok is false before the first success.
func (p *Poller) Watermark() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watermark == nil {
		return time.Time{}, false
	}
	return *p.watermark, true
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick issues one fetch without waiting for earlier ones to finish.
func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	p.nextSeq++
	seq := p.nextSeq
	var since *time.Time
	if p.watermark != nil {
		w := *p.watermark
		since = &w
	}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		res, err := p.fetcher.Fetch(ctx, since)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.ErrorContext(ctx, "feed poll failed", "seq", seq, "error", err)
			}
			return
		}
		p.apply(ctx, seq, res)
	}()
}

func (p *Poller) apply(ctx context.Context, seq uint64, res *Feed) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	p.mu.Lock()
	if ctx.Err() != nil || seq <= p.applied {
		p.mu.Unlock()
		p.logger.DebugContext(ctx, "discarding stale feed response", "seq", seq)
		return
	}
	p.applied = seq

	update := Update{Seq: seq}
	if res.Panic {
		// Forget the watermark so the default window reloads once panic ends.
		p.items = nil
		p.watermark = nil
		p.panic = true
		update.Panic = true
	} else {
		p.panic = false
		if p.watermark == nil || res.ServerTime.After(*p.watermark) {
			w := res.ServerTime
			p.watermark = &w
		}
		before := make(map[itemKey]bool, len(p.items))
		for _, it := range p.items {
			before[it.key()] = true
		}
		p.items = Merge(p.items, res.Items, p.cap)
		for _, it := range p.items {
			if !before[it.key()] {
				update.Added = append(update.Added, it)
			}
		}
	}
	update.Items = append([]Item(nil), p.items...)
	if p.watermark != nil {
		update.Watermark = *p.watermark
	}
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(update)
	}
}
