// Package enginepool manages a bounded set of long-lived rendering engine
// instances that convert resolved HTML into paginated PDF bytes. Engines
// are expensive to start and memory-heavy, so the pool amortizes startup
// across requests while capping total concurrency at its max size. A
// crashed instance is discarded and replaced lazily on a later acquire;
// the in-flight request that hit the crash fails and is never retried
// here.
package enginepool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

// Engine is one heavyweight rendering instance. An engine handles one
// render at a time; the pool enforces that exclusivity.
type Engine interface {
	Render(ctx context.Context, html []byte, opts docgen.OutputOptions) ([]byte, error)
	Close() error
}

// Factory starts a fresh engine instance.
type Factory func(ctx context.Context) (Engine, error)

// Config sizes and times the pool.
type Config struct {
	// Max bounds concurrent instances. Engines are memory-heavy; keep
	// this small.
	Max int
	// MinWarm is the idle-eviction floor.
	MinWarm int
	// AcquireTimeout bounds how long Acquire waits for capacity.
	AcquireTimeout time.Duration
	// RenderTimeout is the hard wall-clock budget for one render.
	RenderTimeout time.Duration
	// IdleTimeout evicts instances idle longer than this.
	IdleTimeout time.Duration
	// SweepInterval paces the idle-eviction janitor.
	SweepInterval time.Duration

	Factory Factory
	Logger  docgen.Logger
	Now     func() time.Time
}

// DefaultConfig returns pool defaults.
func DefaultConfig() Config {
	return Config{
		Max:            2,
		MinWarm:        0,
		AcquireTimeout: 10 * time.Second,
		RenderTimeout:  30 * time.Second,
		IdleTimeout:    5 * time.Minute,
		SweepInterval:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Max <= 0 {
		c.Max = defaults.Max
	}
	if c.MinWarm < 0 {
		c.MinWarm = 0
	}
	if c.MinWarm > c.Max {
		c.MinWarm = c.Max
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = defaults.AcquireTimeout
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = defaults.RenderTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaults.SweepInterval
	}
	if c.Logger == nil {
		c.Logger = docgen.NopLogger{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type instanceState int

const (
	stateIdle instanceState = iota
	stateAcquired
	stateCrashed
	stateClosing
)

type instance struct {
	id        int
	engine    Engine
	state     instanceState
	idleSince time.Time
}

// Pool owns the instance arena. Instances are mutated only by the pool;
// callers interact through scoped leases.
type Pool struct {
	cfg Config

	// permits caps concurrent leases at cfg.Max. A permit is held for the
	// lifetime of a lease, whether or not an engine start succeeds.
	permits chan struct{}

	mu     sync.Mutex
	idle   []*instance
	live   int
	nextID int
	closed bool

	inflight    sync.WaitGroup
	janitorStop chan struct{}
	janitorDone chan struct{}
}

var _ docgen.EnginePool = (*Pool)(nil)

// New creates a pool. The janitor starts immediately; engines start
// lazily on first acquire.
func New(cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()
	if cfg.Factory == nil {
		return nil, docgen.NewError(docgen.KindValidation, "engine pool requires a factory", nil)
	}

	p := &Pool{
		cfg:         cfg,
		permits:     make(chan struct{}, cfg.Max),
		janitorStop: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	for i := 0; i < cfg.Max; i++ {
		p.permits <- struct{}{}
	}
	go p.janitor()
	return p, nil
}

// Acquire blocks until an instance is available or the acquire timeout
// elapses. The returned lease must be released on every exit path.
func (p *Pool) Acquire(ctx context.Context) (docgen.Lease, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, docgen.NewError(docgen.KindInternal, "engine pool is shut down", nil)
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case <-p.permits:
	case <-timer.C:
		return nil, docgen.NewError(docgen.KindPoolExhausted,
			fmt.Sprintf("no engine available within %s", p.cfg.AcquireTimeout), nil)
	case <-ctx.Done():
		return nil, docgen.NewError(docgen.KindCanceled, "acquire canceled", ctx.Err())
	}

	inst, err := p.checkout(ctx)
	if err != nil {
		p.permits <- struct{}{}
		return nil, err
	}

	p.inflight.Add(1)
	return &lease{pool: p, inst: inst}, nil
}

// checkout reuses an idle instance or starts a fresh one. The caller
// holds a permit.
func (p *Pool) checkout(ctx context.Context) (*instance, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, docgen.NewError(docgen.KindInternal, "engine pool is shut down", nil)
	}
	if n := len(p.idle); n > 0 {
		inst := p.idle[n-1]
		p.idle = p.idle[:n-1]
		inst.state = stateAcquired
		p.mu.Unlock()
		return inst, nil
	}
	p.nextID++
	id := p.nextID
	p.live++
	p.mu.Unlock()

	engine, err := p.cfg.Factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		return nil, docgen.NewError(docgen.KindRenderCrash, "engine start failed", err)
	}

	p.cfg.Logger.Debugf("engine %d started", id)
	return &instance{id: id, engine: engine, state: stateAcquired}, nil
}

// Shutdown refuses new acquires, waits for in-flight leases bounded by
// ctx, then terminates every instance.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.janitorStop)
	<-p.janitorDone

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = docgen.NewError(docgen.KindRenderTimeout, "shutdown wait exceeded", ctx.Err())
	}

	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.live = 0
	p.mu.Unlock()

	for _, inst := range idle {
		inst.state = stateClosing
		if err := inst.engine.Close(); err != nil {
			p.cfg.Logger.Errorf("engine %d close: %v", inst.id, err)
		}
	}
	return waitErr
}

// Stats reports pool occupancy, mostly for tests and diagnostics.
func (p *Pool) Stats() (live, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live, len(p.idle)
}

func (p *Pool) release(inst *instance, discard bool) {
	if discard {
		p.discard(inst)
	} else {
		p.mu.Lock()
		inst.state = stateIdle
		inst.idleSince = p.cfg.Now()
		closed := p.closed
		if !closed {
			p.idle = append(p.idle, inst)
		} else {
			p.live--
		}
		p.mu.Unlock()
		if closed {
			if err := inst.engine.Close(); err != nil {
				p.cfg.Logger.Errorf("engine %d close: %v", inst.id, err)
			}
		}
	}

	p.inflight.Done()
	p.permits <- struct{}{}
}

// discard drops a crashed or timed-out instance. The replacement starts
// lazily on the next acquire.
func (p *Pool) discard(inst *instance) {
	p.mu.Lock()
	inst.state = stateCrashed
	p.live--
	p.mu.Unlock()

	p.cfg.Logger.Infof("engine %d discarded", inst.id)
	if err := inst.engine.Close(); err != nil {
		p.cfg.Logger.Errorf("engine %d close: %v", inst.id, err)
	}
}

func (p *Pool) janitor() {
	defer close(p.janitorDone)
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.janitorStop:
			return
		}
	}
}

// sweep closes instances idle past the threshold, down to the warm floor.
func (p *Pool) sweep() {
	now := p.cfg.Now()

	p.mu.Lock()
	var keep []*instance
	var evict []*instance
	for _, inst := range p.idle {
		tooOld := now.Sub(inst.idleSince) >= p.cfg.IdleTimeout
		if tooOld && p.live-len(evict) > p.cfg.MinWarm {
			inst.state = stateClosing
			evict = append(evict, inst)
			continue
		}
		keep = append(keep, inst)
	}
	p.idle = keep
	p.live -= len(evict)
	p.mu.Unlock()

	for _, inst := range evict {
		p.cfg.Logger.Debugf("engine %d evicted after idle timeout", inst.id)
		if err := inst.engine.Close(); err != nil {
			p.cfg.Logger.Errorf("engine %d close: %v", inst.id, err)
		}
	}
}

// lease is the caller's scoped hold on one instance.
type lease struct {
	pool *Pool
	inst *instance

	mu        sync.Mutex
	rendering bool
	discard   bool
	released  bool
}

var _ docgen.Lease = (*lease)(nil)

// Render runs one render on the leased instance under the pool's hard
// wall-clock budget. A timeout or engine failure marks the instance for
// discard; the error is returned to this caller, not retried.
func (l *lease) Render(ctx context.Context, html []byte, opts docgen.OutputOptions) ([]byte, error) {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return nil, docgen.NewError(docgen.KindInternal, "lease already released", nil)
	}
	if l.rendering {
		l.mu.Unlock()
		return nil, docgen.NewError(docgen.KindInternal, "lease already rendering", nil)
	}
	l.rendering = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.rendering = false
		l.mu.Unlock()
	}()

	renderCtx, cancel := context.WithTimeout(ctx, l.pool.cfg.RenderTimeout)
	defer cancel()

	bytes, err := l.inst.engine.Render(renderCtx, html, opts)
	if err == nil {
		return bytes, nil
	}

	// The instance state is unknown after any failure; drop it.
	l.mu.Lock()
	l.discard = true
	l.mu.Unlock()

	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, docgen.NewError(docgen.KindRenderTimeout,
			fmt.Sprintf("render exceeded %s", l.pool.cfg.RenderTimeout), err)
	case ctx.Err() != nil:
		return nil, docgen.NewError(docgen.KindCanceled, "render canceled", ctx.Err())
	default:
		return nil, docgen.NewError(docgen.KindRenderCrash, "engine render failed", err)
	}
}

// Release returns the instance to the pool. Idempotent; required on all
// exit paths including cancellation.
func (l *lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	discard := l.discard
	l.mu.Unlock()

	l.pool.release(l.inst, discard)
}
