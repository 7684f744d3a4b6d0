// Package mocks holds testify mocks for the collaborators of the launch
// orchestrator.
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/browser"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
)

// -- Browser Driver Mock --

// MockDriver mocks the orchestrator.Driver interface.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) StartSession(ctx context.Context, spec browser.SessionSpec) (browser.Session, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browser.Session), args.Error(1)
}

// -- Browser Session Mock --

// MockSession implements browser.Session. Done is a real channel closed by
// CloseExternally or by a successful Close.
type MockSession struct {
	mock.Mock
	Pid int

	done     chan struct{}
	doneOnce sync.Once
}

// NewMockSession creates a session mock reporting pid.
func NewMockSession(pid int) *MockSession {
	return &MockSession{Pid: pid, done: make(chan struct{})}
}

// CloseExternally simulates the user closing the browser window.
func (m *MockSession) CloseExternally() {
	m.doneOnce.Do(func() { close(m.done) })
}

func (m *MockSession) Done() <-chan struct{} { return m.done }

func (m *MockSession) PID() int { return m.Pid }

func (m *MockSession) Close(ctx context.Context) error {
	err := m.Called(ctx).Error(0)
	m.CloseExternally()
	return err
}

// -- Profile Source Mock --

// MockProfileSource mocks the orchestrator.ProfileSource interface.
type MockProfileSource struct {
	mock.Mock
}

func (m *MockProfileSource) ProfileForBrowser(ctx context.Context, browserID string) (*fingerprint.Profile, error) {
	args := m.Called(ctx, browserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fingerprint.Profile), args.Error(1)
}

func (m *MockProfileSource) SaveProfile(ctx context.Context, p *fingerprint.Profile) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

// -- Session Path Mock --

// MockPathResolver mocks the orchestrator.PathResolver interface.
type MockPathResolver struct {
	mock.Mock
}

func (m *MockPathResolver) Resolve(browserID string) (string, error) {
	args := m.Called(browserID)
	return args.String(0), args.Error(1)
}

func (m *MockPathResolver) Release(browserID string) error {
	return m.Called(browserID).Error(0)
}

// -- Proxy Provider Mock --

// MockProxyProvider mocks the orchestrator.ProxyProvider interface.
type MockProxyProvider struct {
	mock.Mock
}

func (m *MockProxyProvider) ProxyFor(ctx context.Context, browserID string) (*schemas.Proxy, error) {
	args := m.Called(ctx, browserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Proxy), args.Error(1)
}
