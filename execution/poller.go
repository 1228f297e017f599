package execution

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/flowcanvas/types"
)

// Fetcher reads the raw execution record of one conversation from the
// engine.
type Fetcher interface {
	FetchExecution(ctx context.Context, conversationID string) (types.ExecutionRecord, error)
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	// Mode is the scheduling mode used when interpreting records.
	Mode Mode
	// RatePerSecond caps poll cycles per second. Zero means 1/s.
	RatePerSecond float64
	// MaxConcurrent bounds concurrent fetches per cycle. Zero means 4.
	MaxConcurrent int
}

// Poller repeatedly reads execution records for a set of tracked
// conversations and replaces the interpreted view on every read. Reads
// are idempotent; a missed cycle only delays the view.
type Poller struct {
	fetcher Fetcher
	opts    PollerOptions
	limiter *rate.Limiter
	logger  *zap.Logger

	mu    sync.RWMutex
	ids   map[string]bool
	views map[string]*GraphState
}

// NewPoller creates a poller over the given fetcher.
func NewPoller(fetcher Fetcher, opts PollerOptions, logger *zap.Logger) *Poller {
	if opts.Mode == "" {
		opts.Mode = ModeParallel
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		fetcher: fetcher,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		logger:  logger.With(zap.String("component", "execution_poller")),
		ids:     make(map[string]bool),
		views:   make(map[string]*GraphState),
	}
}

// Track starts polling a conversation.
func (p *Poller) Track(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[conversationID] = true
}

// Untrack stops polling a conversation and drops its view.
func (p *Poller) Untrack(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ids, conversationID)
	delete(p.views, conversationID)
}

// View returns the last interpreted state of a conversation.
func (p *Poller) View(conversationID string) (*GraphState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	state, ok := p.views[conversationID]
	return state, ok
}

// PollOnce fetches every tracked conversation concurrently and replaces
// the stored views. A failed fetch keeps the previous view for that
// conversation; other conversations are unaffected.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.mu.RLock()
	ids := make([]string, 0, len(p.ids))
	for id := range p.ids {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrent)
	for _, id := range ids {
		g.Go(func() error {
			record, err := p.fetcher.FetchExecution(gctx, id)
			if err != nil {
				p.logger.Warn("poll failed, keeping previous view",
					zap.String("conversation", id), zap.Error(err))
				return nil
			}
			state := Interpret(record, p.opts.Mode)
			p.mu.Lock()
			if p.ids[id] {
				p.views[id] = state
			}
			p.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Run polls at the configured rate until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := p.PollOnce(ctx); err != nil {
			return err
		}
	}
}
