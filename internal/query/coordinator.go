package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/metrics"
)

// ErrStopped is returned by event methods once Run has returned.
var ErrStopped = errors.New("coordinator stopped")

type eventKind int

const (
	evInput eventKind = iota
	evClear
	evKind
	evPage
	evFilter
)

type event struct {
	kind   eventKind
	text   string
	surf   Kind
	page   int
	filter catalog.FilterSort
}

type result struct {
	epoch   uint64
	mode    Mode
	items   []catalog.Item
	sources []SourceResult
	took    time.Duration
}

// Coordinator drives one search surface. All state below the channels is
// owned by the Run goroutine.
type Coordinator struct {
	sources catalog.Sources
	cfg     Config
	log     *slog.Logger

	events  chan event
	results chan result
	updates chan Snapshot
	done    chan struct{}
	fanOuts atomic.Int64

	mu     sync.RWMutex
	latest Snapshot

	kind      Kind
	text      string
	page      int
	filter    catalog.FilterSort
	epoch     uint64
	committed uint64
	mode      Mode
	phase     Phase
	raw       []catalog.Item
	srcs      []SourceResult
	settled   bool
	timer     *time.Timer
	timerC    <-chan time.Time
}

// New creates a Coordinator. Call Run to start it.
func New(sources catalog.Sources, cfg Config, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Kind == "" {
		cfg.Kind = KindAll
	}
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = MinQueryLength
	}
	if cfg.Filter.SortBy == "" {
		cfg.Filter.SortBy = catalog.SortPopularity
	}
	c := &Coordinator{
		sources: sources,
		cfg:     cfg,
		log:     log.With("component", "query", "surface", string(cfg.Kind)),
		events:  make(chan event, 32),
		results: make(chan result),
		updates: make(chan Snapshot, 1),
		done:    make(chan struct{}),
		kind:    cfg.Kind,
		page:    1,
		filter:  cfg.Filter,
		mode:    ModeIdle,
		phase:   PhaseIdle,
		raw:     []catalog.Item{},
	}
	c.latest = c.snapshot()
	return c
}

// Run processes events until ctx is canceled. It starts with discovery for
// the configured kind.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.stopTimer()

	c.startIdle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ctx, ev)
		case <-c.timerC:
			c.timerC = nil
			c.fire(ctx)
		case r := <-c.results:
			c.commit(r)
		}
	}
}

// Input records a keystroke. The query fires once input has been quiet for
// the debounce period.
func (c *Coordinator) Input(text string) error {
	return c.send(event{kind: evInput, text: text})
}

// Clear empties the input and returns to discovery immediately.
func (c *Coordinator) Clear() error {
	return c.send(event{kind: evClear})
}

// SetKind switches the surface to another kind and re-runs the current mode.
func (c *Coordinator) SetKind(kind Kind) error {
	return c.send(event{kind: evKind, surf: kind})
}

// SetPage moves discovery to another page and re-runs the current mode.
func (c *Coordinator) SetPage(page int) error {
	return c.send(event{kind: evPage, page: page})
}

// SetFilter re-applies the pipeline to the current results without a fetch.
func (c *Coordinator) SetFilter(f catalog.FilterSort) error {
	return c.send(event{kind: evFilter, filter: f})
}

// Latest returns the most recent snapshot.
func (c *Coordinator) Latest() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Updates delivers snapshots as they change. Only the newest pending
// snapshot is kept; a slow reader skips intermediate ones.
func (c *Coordinator) Updates() <-chan Snapshot {
	return c.updates
}

// Done is closed when Run returns.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// FanOuts returns how many provider fan-outs the surface started.
func (c *Coordinator) FanOuts() int64 {
	return c.fanOuts.Load()
}

func (c *Coordinator) send(ev event) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

func (c *Coordinator) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evInput:
		if strings.TrimSpace(ev.text) == "" {
			// An emptied field is a clear, not a keystroke.
			c.text = ""
			c.stopTimer()
			c.startIdle(ctx)
			return
		}
		c.text = ev.text
		c.phase = PhaseDebouncing
		c.settled = false
		c.resetTimer()
		c.publish()
	case evClear:
		c.text = ""
		c.stopTimer()
		c.startIdle(ctx)
	case evKind:
		if ev.surf == "" {
			ev.surf = KindAll
		}
		c.kind = ev.surf
		c.page = 1
		c.stopTimer()
		c.rerun(ctx)
	case evPage:
		c.page = max(ev.page, 1)
		c.stopTimer()
		c.rerun(ctx)
	case evFilter:
		c.filter = ev.filter
		c.publish()
	}
}

// fire runs when the debounce timer expires.
func (c *Coordinator) fire(ctx context.Context) {
	if c.searchable() {
		c.startSearch(ctx)
		return
	}
	// Short input shows discovery; skip the fetch if it is already current.
	if c.mode == ModeIdle {
		c.settled = c.committed == c.epoch
		c.phase = PhaseIdle
		if c.settled && anyFailed(c.srcs) {
			c.phase = PhaseError
		}
		c.publish()
		return
	}
	c.startIdle(ctx)
}

func (c *Coordinator) rerun(ctx context.Context) {
	if c.searchable() {
		c.startSearch(ctx)
		return
	}
	c.startIdle(ctx)
}

func (c *Coordinator) searchable() bool {
	return utf8.RuneCountInString(strings.TrimSpace(c.text)) >= c.cfg.MinQueryLength
}

func (c *Coordinator) startSearch(ctx context.Context) {
	text := strings.TrimSpace(c.text)
	kind := c.kind
	c.launch(ctx, ModeSearch, PhaseQuerying, func(ctx context.Context) ([]catalog.Item, []SourceResult) {
		return Search(ctx, c.sources, kind, text)
	})
}

func (c *Coordinator) startIdle(ctx context.Context) {
	kind, page := c.kind, c.page
	c.launch(ctx, ModeIdle, PhaseIdle, func(ctx context.Context) ([]catalog.Item, []SourceResult) {
		return Discover(ctx, c.sources, kind, page)
	})
}

// launch bumps the epoch and runs fetch off the loop. The result comes back
// through c.results tagged with the epoch it was started under.
func (c *Coordinator) launch(ctx context.Context, mode Mode, phase Phase, fetch func(context.Context) ([]catalog.Item, []SourceResult)) {
	c.epoch++
	epoch := c.epoch
	c.mode = mode
	c.phase = phase
	c.settled = false
	c.fanOuts.Add(1)
	metrics.QueryFanOuts.WithLabelValues(string(mode)).Inc()

	c.log.Debug("fan-out started", "epoch", epoch, "mode", mode, "kind", c.kind, "text", c.text, "page", c.page)
	c.publish()

	go func() {
		start := time.Now()
		items, sources := fetch(ctx)
		r := result{epoch: epoch, mode: mode, items: items, sources: sources, took: time.Since(start)}
		select {
		case c.results <- r:
		case <-ctx.Done():
		}
	}()
}

func (c *Coordinator) commit(r result) {
	if r.epoch != c.epoch {
		metrics.StaleResults.Inc()
		c.log.Debug("stale results dropped", "epoch", r.epoch, "current", c.epoch, "results", len(r.items))
		return
	}

	c.raw = r.items
	c.srcs = r.sources
	c.committed = r.epoch
	c.settled = true
	switch {
	case anyFailed(r.sources):
		c.phase = PhaseError
	case r.mode == ModeIdle:
		c.phase = PhaseIdle
	default:
		c.phase = PhaseSettled
	}
	if c.timerC != nil {
		// Newer input is waiting for its quiet period.
		c.phase = PhaseDebouncing
	}

	for _, s := range r.sources {
		if s.Err != nil {
			c.log.Warn("source failed", "epoch", r.epoch, "kind", s.Kind, "error", s.Err)
		}
	}
	c.log.Debug("results committed", "epoch", r.epoch, "mode", r.mode, "results", len(r.items), "duration_ms", r.took.Milliseconds())
	c.publish()
}

func anyFailed(sources []SourceResult) bool {
	for _, s := range sources {
		if s.Err != nil {
			return true
		}
	}
	return false
}

func (c *Coordinator) snapshot() Snapshot {
	items := catalog.Apply(c.raw, c.filter)
	return Snapshot{
		State:   State{Kind: c.kind, Text: c.text, Epoch: c.epoch},
		Phase:   c.phase,
		Mode:    c.mode,
		Page:    c.page,
		Filter:  c.filter,
		Items:   items,
		Raw:     c.raw,
		Sources: c.srcs,
		Stats:   catalog.Summarize(items),
		Settled: c.settled,
	}
}

func (c *Coordinator) publish() {
	snap := c.snapshot()

	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()

	// Latest wins: replace a pending snapshot the reader hasn't taken.
	select {
	case c.updates <- snap:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snap:
	default:
	}
}

func (c *Coordinator) resetTimer() {
	c.stopTimer()
	c.timer = time.NewTimer(c.cfg.Debounce)
	c.timerC = c.timer.C
}

func (c *Coordinator) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = nil
	c.timerC = nil
}
