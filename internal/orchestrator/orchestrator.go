// Package orchestrator owns the runtime lifecycle of browser sessions: one live
// session per browser id, launched with compiled fingerprint overrides and
// supervised until it is stopped or closes on its own.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/browser"
	"github.com/ainasago/FishBrowser-sub004/internal/compiler"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
)

// State of one browser id. An id without an entry is Idle.
type State string

const (
	StateIdle      State = "idle"
	StateLaunching State = "launching"
	StateRunning   State = "running"
	StateClosing   State = "closing"
)

// Driver starts browser sessions.
type Driver interface {
	StartSession(ctx context.Context, spec browser.SessionSpec) (browser.Session, error)
}

// ProfileSource loads the fingerprint bound to a browser and persists
// recompiled artifacts.
type ProfileSource interface {
	ProfileForBrowser(ctx context.Context, browserID string) (*fingerprint.Profile, error)
	SaveProfile(ctx context.Context, p *fingerprint.Profile) (string, error)
}

// PathResolver hands out persistent user data directories.
type PathResolver interface {
	Resolve(browserID string) (string, error)
	Release(browserID string) error
}

// ProxyProvider supplies the proxy for a browser, or nil for a direct connection.
type ProxyProvider interface {
	ProxyFor(ctx context.Context, browserID string) (*schemas.Proxy, error)
}

// LaunchRecord describes a live session.
type LaunchRecord struct {
	BrowserID   string          `json:"browserId"`
	SessionID   string          `json:"sessionId"`
	ProfileID   string          `json:"profileId"`
	PID         int             `json:"pid"`
	UserDataDir string          `json:"userDataDir,omitempty"`
	Degraded    bool            `json:"degraded,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	Session     browser.Session `json:"-"`
}

type entry struct {
	state  State
	record *LaunchRecord
}

// Options wires the collaborators. Paths and Proxies are optional.
type Options struct {
	Driver       Driver
	Profiles     ProfileSource
	Compiler     *compiler.Compiler
	Paths        PathResolver
	Proxies      ProxyProvider
	CloseTimeout time.Duration
	Logger       *zap.Logger
}

// Orchestrator serializes state transitions per browser id behind one mutex.
// The mutex is never held while waiting on the driver.
type Orchestrator struct {
	logger       *zap.Logger
	driver       Driver
	profiles     ProfileSource
	compiler     *compiler.Compiler
	paths        PathResolver
	proxies      ProxyProvider
	closeTimeout time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	watches sync.WaitGroup
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	timeout := opts.CloseTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Orchestrator{
		logger:       opts.Logger.Named("orchestrator"),
		driver:       opts.Driver,
		profiles:     opts.Profiles,
		compiler:     opts.Compiler,
		paths:        opts.Paths,
		proxies:      opts.Proxies,
		closeTimeout: timeout,
		now:          time.Now,
		entries:      make(map[string]*entry),
	}
}

// State reports the current state of browserID.
func (o *Orchestrator) State(browserID string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.entries[browserID]; ok {
		return e.state
	}
	return StateIdle
}

// Launch starts a session for browserID. It fails with AlreadyRunning while the
// id is launching, running or closing, with ProfileMissing when no profile is
// bound to it and with DriverError when the browser cannot be started.
func (o *Orchestrator) Launch(ctx context.Context, browserID string) (*LaunchRecord, error) {
	const op = "orchestrator.Launch"

	o.mu.Lock()
	if e, ok := o.entries[browserID]; ok {
		state := e.state
		o.mu.Unlock()
		return nil, schemas.E(schemas.KindAlreadyRunning, op, browserID, fmt.Errorf("browser is %s", state))
	}
	e := &entry{state: StateLaunching}
	o.entries[browserID] = e
	o.mu.Unlock()

	rec, err := o.start(ctx, browserID)

	o.mu.Lock()
	if err != nil {
		delete(o.entries, browserID)
		o.mu.Unlock()
		o.logger.Warn("Launch failed", zap.String("browser_id", browserID), zap.Error(err))
		return nil, err
	}
	e.state, e.record = StateRunning, rec
	o.watches.Add(1)
	o.mu.Unlock()

	go o.watch(browserID, e)

	o.logger.Info("Browser launched",
		zap.String("browser_id", browserID),
		zap.String("session_id", rec.SessionID),
		zap.String("profile_id", rec.ProfileID),
		zap.Int("pid", rec.PID),
		zap.Bool("degraded", rec.Degraded))
	return rec, nil
}

// start performs the launch steps. It runs without the lock held.
func (o *Orchestrator) start(ctx context.Context, browserID string) (*LaunchRecord, error) {
	const op = "orchestrator.Launch"

	p, err := o.profiles.ProfileForBrowser(ctx, browserID)
	switch {
	case errors.Is(err, schemas.ErrNotFound) || (err == nil && p == nil):
		return nil, schemas.E(schemas.KindProfileMissing, op, browserID, err)
	case err != nil:
		return nil, fmt.Errorf("orchestrator: load profile for %s: %w", browserID, err)
	}

	artifacts, refreshed, err := o.compiler.Ensure(p, o.now())
	if err != nil {
		return nil, fmt.Errorf("orchestrator: compile profile %s: %w", p.ID, err)
	}
	if refreshed {
		if _, err := o.profiles.SaveProfile(ctx, p); err != nil {
			o.logger.Warn("Failed to persist recompiled artifacts", zap.String("profile_id", p.ID), zap.Error(err))
		}
	}

	var dir string
	if o.paths != nil {
		if dir, err = o.paths.Resolve(browserID); err != nil {
			return nil, fmt.Errorf("orchestrator: resolve user data dir: %w", err)
		}
	}
	if o.proxies != nil {
		proxy, err := o.proxies.ProxyFor(ctx, browserID)
		if err != nil {
			o.release(browserID)
			return nil, fmt.Errorf("orchestrator: resolve proxy: %w", err)
		}
		artifacts.ContextOptions.Proxy = proxy
	}

	session, err := o.driver.StartSession(ctx, browser.SessionSpec{
		BrowserID:   browserID,
		Artifacts:   artifacts,
		UserDataDir: dir,
	})
	if err != nil {
		o.release(browserID)
		return nil, schemas.E(schemas.KindDriverError, op, browserID, err)
	}

	return &LaunchRecord{
		BrowserID:   browserID,
		SessionID:   uuid.NewString(),
		ProfileID:   p.ID,
		PID:         session.PID(),
		UserDataDir: dir,
		Degraded:    artifacts.Degraded,
		StartedAt:   o.now().UTC(),
		Session:     session,
	}, nil
}

// claim moves e from Running to Closing. Only the caller that wins the
// transition performs cleanup.
func (o *Orchestrator) claim(browserID string, e *entry) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.entries[browserID] != e || e.state != StateRunning {
		return false
	}
	e.state = StateClosing
	return true
}

// finish releases resources and drops the entry, returning the id to Idle.
func (o *Orchestrator) finish(browserID string, e *entry) {
	o.release(browserID)
	o.mu.Lock()
	if o.entries[browserID] == e {
		delete(o.entries, browserID)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) release(browserID string) {
	if o.paths == nil {
		return
	}
	if err := o.paths.Release(browserID); err != nil {
		o.logger.Warn("Failed to release user data dir", zap.String("browser_id", browserID), zap.Error(err))
	}
}

// watch waits for the session to end on its own.
func (o *Orchestrator) watch(browserID string, e *entry) {
	defer o.watches.Done()
	<-e.record.Session.Done()
	if !o.claim(browserID, e) {
		return
	}
	o.logger.Info("Browser closed externally", zap.String("browser_id", browserID))
	o.finish(browserID, e)
}

// Stop closes the session of browserID. It returns false when the id is not
// running. Driver errors are logged and never block cleanup.
func (o *Orchestrator) Stop(ctx context.Context, browserID string) bool {
	o.mu.Lock()
	e, ok := o.entries[browserID]
	o.mu.Unlock()
	if !ok || !o.claim(browserID, e) {
		return false
	}

	closeCtx, cancel := context.WithTimeout(ctx, o.closeTimeout)
	defer cancel()
	if err := e.record.Session.Close(closeCtx); err != nil {
		o.logger.Warn("Error closing browser session",
			zap.String("browser_id", browserID),
			zap.Error(schemas.E(schemas.KindDriverError, "orchestrator.Stop", browserID, err)))
	}
	o.finish(browserID, e)
	o.logger.Info("Browser stopped", zap.String("browser_id", browserID))
	return true
}

// ListRunning returns the running sessions sorted by browser id. Sessions whose
// browser process has already exited are cleaned up and left out.
func (o *Orchestrator) ListRunning() []LaunchRecord {
	o.mu.Lock()
	running := make(map[string]*entry, len(o.entries))
	for id, e := range o.entries {
		if e.state == StateRunning {
			running[id] = e
		}
	}
	o.mu.Unlock()

	out := make([]LaunchRecord, 0, len(running))
	for id, e := range running {
		if pid := e.record.PID; pid > 0 && !isProcessAlive(pid) {
			if o.claim(id, e) {
				o.logger.Info("Pruned browser whose process exited", zap.String("browser_id", id), zap.Int("pid", pid))
				o.finish(id, e)
			}
			continue
		}
		out = append(out, *e.record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BrowserID < out[j].BrowserID })
	return out
}

// Shutdown stops every running session concurrently and waits for watchers.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.logger.Info("Shutting down orchestrator...")

	o.mu.Lock()
	ids := make([]string, 0, len(o.entries))
	for id, e := range o.entries {
		if e.state == StateRunning {
			ids = append(ids, id)
		}
	}
	o.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			o.Stop(ctx, id)
		}(id)
	}
	wg.Wait()

	waited := make(chan struct{})
	go func() {
		o.watches.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return fmt.Errorf("orchestrator: shutdown: %w", ctx.Err())
	}
	o.logger.Info("Orchestrator shutdown complete.")
	return nil
}
