package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/browser"
	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/compiler"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
	"github.com/ainasago/FishBrowser-sub004/internal/mocks"
)

type fixture struct {
	orch     *Orchestrator
	driver   *mocks.MockDriver
	profiles *mocks.MockProfileSource
	paths    *mocks.MockPathResolver
	proxies  *mocks.MockProxyProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &fixture{
		driver:   new(mocks.MockDriver),
		profiles: new(mocks.MockProfileSource),
		paths:    new(mocks.MockPathResolver),
		proxies:  new(mocks.MockProxyProvider),
	}
	f.orch = New(Options{
		Driver:       f.driver,
		Profiles:     f.profiles,
		Compiler:     compiler.New(logger),
		Paths:        f.paths,
		Proxies:      f.proxies,
		CloseTimeout: time.Second,
		Logger:       logger,
	})

	original := processAliveFunc
	processAliveFunc = func(int) bool { return true }
	t.Cleanup(func() { processAliveFunc = original })
	return f
}

func testProfile(id string) *fingerprint.Profile {
	p := fingerprint.Defaults(catalog.OSWindows)
	p.ID = id
	return p
}

// expectLaunch wires every collaborator for one successful launch of browserID.
func (f *fixture) expectLaunch(browserID string, session *mocks.MockSession) {
	f.profiles.On("ProfileForBrowser", mock.Anything, browserID).Return(testProfile("p-"+browserID), nil).Once()
	f.profiles.On("SaveProfile", mock.Anything, mock.Anything).Return("p-"+browserID, nil).Maybe()
	f.paths.On("Resolve", browserID).Return("/data/"+browserID, nil).Once()
	f.paths.On("Release", browserID).Return(nil).Maybe()
	f.proxies.On("ProxyFor", mock.Anything, browserID).Return(nil, nil).Once()
	f.driver.On("StartSession", mock.Anything, mock.MatchedBy(func(spec browser.SessionSpec) bool {
		return spec.BrowserID == browserID
	})).Return(session, nil).Once()
	session.On("Close", mock.Anything).Return(nil).Maybe()
}

func (f *fixture) waitIdle(t *testing.T, browserID string) {
	t.Helper()
	require.Eventually(t, func() bool { return f.orch.State(browserID) == StateIdle }, 2*time.Second, 5*time.Millisecond)
}

func TestLaunchPassesArtifactsToDriver(t *testing.T) {
	f := newFixture(t)
	session := mocks.NewMockSession(4242)
	proxy := &schemas.Proxy{Server: "http://10.0.0.1:3128", Username: "u", Password: "p"}

	p := testProfile("p-1")
	f.profiles.On("ProfileForBrowser", mock.Anything, "B1").Return(p, nil).Once()
	f.profiles.On("SaveProfile", mock.Anything, p).Return("p-1", nil).Once()
	f.paths.On("Resolve", "B1").Return("/data/B1", nil).Once()
	f.proxies.On("ProxyFor", mock.Anything, "B1").Return(proxy, nil).Once()
	f.driver.On("StartSession", mock.Anything, mock.MatchedBy(func(spec browser.SessionSpec) bool {
		return spec.BrowserID == "B1" &&
			spec.UserDataDir == "/data/B1" &&
			spec.Artifacts.ContextOptions.Proxy == proxy &&
			spec.Artifacts.ContextOptions.UserAgent == p.UserAgent &&
			len(spec.Artifacts.InitScripts) > 0
	})).Return(session, nil).Once()

	rec, err := f.orch.Launch(context.Background(), "B1")
	require.NoError(t, err)

	assert.Equal(t, "B1", rec.BrowserID)
	assert.Equal(t, "p-1", rec.ProfileID)
	assert.Equal(t, 4242, rec.PID)
	assert.NotEmpty(t, rec.SessionID)
	assert.Equal(t, "/data/B1", rec.UserDataDir)
	assert.False(t, rec.StartedAt.IsZero())
	assert.Equal(t, StateRunning, f.orch.State("B1"))
	assert.False(t, p.Stale(), "stale artifacts are recompiled before launch")

	f.profiles.AssertExpectations(t)
	f.driver.AssertExpectations(t)
	f.proxies.AssertExpectations(t)
}

func TestLaunchSkipsSaveWhenArtifactsAreFresh(t *testing.T) {
	f := newFixture(t)
	p := testProfile("p-1")
	_, err := compiler.New(zaptest.NewLogger(t)).Refresh(p, time.Now())
	require.NoError(t, err)

	f.profiles.On("ProfileForBrowser", mock.Anything, "B1").Return(p, nil).Once()
	f.paths.On("Resolve", "B1").Return("", nil)
	f.proxies.On("ProxyFor", mock.Anything, "B1").Return(nil, nil)
	f.driver.On("StartSession", mock.Anything, mock.Anything).Return(mocks.NewMockSession(1), nil)

	_, err = f.orch.Launch(context.Background(), "B1")
	require.NoError(t, err)
	f.profiles.AssertNotCalled(t, "SaveProfile", mock.Anything, mock.Anything)
}

func TestLaunchTwiceFailsWithAlreadyRunning(t *testing.T) {
	f := newFixture(t)
	f.expectLaunch("B1", mocks.NewMockSession(1))

	_, err := f.orch.Launch(context.Background(), "B1")
	require.NoError(t, err)

	_, err = f.orch.Launch(context.Background(), "B1")
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrAlreadyRunning)
	f.driver.AssertNumberOfCalls(t, "StartSession", 1)
}

func TestConcurrentLaunchesOfOneID(t *testing.T) {
	f := newFixture(t)
	f.expectLaunch("B1", mocks.NewMockSession(1))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, busy int
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Launch(context.Background(), "B1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, schemas.ErrAlreadyRunning):
				busy++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 15, busy)
}

func TestExternalCloseReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	session := mocks.NewMockSession(1)
	f.expectLaunch("B1", session)

	_, err := f.orch.Launch(context.Background(), "B1")
	require.NoError(t, err)

	session.CloseExternally()
	f.waitIdle(t, "B1")

	assert.False(t, f.orch.Stop(context.Background(), "B1"))
	assert.Empty(t, f.orch.ListRunning())
	f.paths.AssertNumberOfCalls(t, "Release", 1)
	session.AssertNotCalled(t, "Close", mock.Anything)

	// The id is free again.
	f.expectLaunch("B1", mocks.NewMockSession(2))
	_, err = f.orch.Launch(context.Background(), "B1")
	assert.NoError(t, err)
}

func TestLaunchWithoutProfile(t *testing.T) {
	f := newFixture(t)
	f.profiles.On("ProfileForBrowser", mock.Anything, "B1").
		Return(nil, schemas.E(schemas.KindNotFound, "store.ProfileForBrowser", "B1", nil)).Once()

	_, err := f.orch.Launch(context.Background(), "B1")
	assert.ErrorIs(t, err, schemas.ErrProfileMissing)
	assert.Equal(t, StateIdle, f.orch.State("B1"))
	f.driver.AssertNotCalled(t, "StartSession", mock.Anything, mock.Anything)
}

func TestLaunchDriverFailure(t *testing.T) {
	f := newFixture(t)
	f.profiles.On("ProfileForBrowser", mock.Anything, "B1").Return(testProfile("p-1"), nil)
	f.profiles.On("SaveProfile", mock.Anything, mock.Anything).Return("p-1", nil)
	f.paths.On("Resolve", "B1").Return("/data/B1", nil)
	f.paths.On("Release", "B1").Return(nil)
	f.proxies.On("ProxyFor", mock.Anything, "B1").Return(nil, nil)
	f.driver.On("StartSession", mock.Anything, mock.Anything).Return(nil, errors.New("chrome not found")).Once()

	_, err := f.orch.Launch(context.Background(), "B1")
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrDriver)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Equal(t, StateIdle, f.orch.State("B1"))
	f.paths.AssertCalled(t, "Release", "B1")

	f.driver.On("StartSession", mock.Anything, mock.Anything).Return(mocks.NewMockSession(1), nil).Once()
	_, err = f.orch.Launch(context.Background(), "B1")
	assert.NoError(t, err, "a failed launch leaves the id idle")
}

func TestLaunchProxyFailureReleasesPath(t *testing.T) {
	f := newFixture(t)
	f.profiles.On("ProfileForBrowser", mock.Anything, "B1").Return(testProfile("p-1"), nil)
	f.profiles.On("SaveProfile", mock.Anything, mock.Anything).Return("p-1", nil)
	f.paths.On("Resolve", "B1").Return("/data/B1", nil)
	f.paths.On("Release", "B1").Return(nil)
	f.proxies.On("ProxyFor", mock.Anything, "B1").Return(nil, errors.New("connection refused")).Once()

	_, err := f.orch.Launch(context.Background(), "B1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, StateIdle, f.orch.State("B1"))
	f.paths.AssertCalled(t, "Release", "B1")
	f.driver.AssertNotCalled(t, "StartSession", mock.Anything, mock.Anything)
}

func TestStop(t *testing.T) {
	t.Run("not running", func(t *testing.T) {
		f := newFixture(t)
		assert.False(t, f.orch.Stop(context.Background(), "nope"))
	})

	t.Run("running", func(t *testing.T) {
		f := newFixture(t)
		session := mocks.NewMockSession(1)
		f.expectLaunch("B1", session)
		_, err := f.orch.Launch(context.Background(), "B1")
		require.NoError(t, err)

		assert.True(t, f.orch.Stop(context.Background(), "B1"))
		assert.Equal(t, StateIdle, f.orch.State("B1"))
		session.AssertNumberOfCalls(t, "Close", 1)
		f.paths.AssertNumberOfCalls(t, "Release", 1)
		assert.False(t, f.orch.Stop(context.Background(), "B1"))
	})

	t.Run("close error is swallowed", func(t *testing.T) {
		f := newFixture(t)
		session := mocks.NewMockSession(1)
		session.On("Close", mock.Anything).Return(errors.New("target crashed")).Once()
		f.expectLaunch("B1", session)
		_, err := f.orch.Launch(context.Background(), "B1")
		require.NoError(t, err)

		assert.True(t, f.orch.Stop(context.Background(), "B1"))
		assert.Equal(t, StateIdle, f.orch.State("B1"))
		f.paths.AssertNumberOfCalls(t, "Release", 1)
	})
}

func TestStopRacesExternalClose(t *testing.T) {
	f := newFixture(t)
	const rounds = 50

	for i := 0; i < rounds; i++ {
		session := mocks.NewMockSession(1)
		f.expectLaunch("B1", session)
		_, err := f.orch.Launch(context.Background(), "B1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.orch.Stop(context.Background(), "B1")
		}()
		go func() {
			defer wg.Done()
			session.CloseExternally()
		}()
		wg.Wait()
		f.waitIdle(t, "B1")
	}

	f.paths.AssertNumberOfCalls(t, "Release", rounds)
}

func TestListRunningPrunesExitedProcesses(t *testing.T) {
	f := newFixture(t)
	f.expectLaunch("B2", mocks.NewMockSession(200))
	f.expectLaunch("B1", mocks.NewMockSession(100))
	f.expectLaunch("B3", mocks.NewMockSession(0))

	for _, id := range []string{"B2", "B1", "B3"} {
		_, err := f.orch.Launch(context.Background(), id)
		require.NoError(t, err)
	}

	processAliveFunc = func(pid int) bool { return pid != 200 }

	running := f.orch.ListRunning()
	require.Len(t, running, 2)
	assert.Equal(t, "B1", running[0].BrowserID)
	assert.Equal(t, "B3", running[1].BrowserID, "unknown pids are never pruned")
	assert.Equal(t, StateIdle, f.orch.State("B2"))
	f.paths.AssertCalled(t, "Release", "B2")
}

func TestShutdownStopsEverything(t *testing.T) {
	f := newFixture(t)
	sessions := map[string]*mocks.MockSession{}
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("B%d", i)
		sessions[id] = mocks.NewMockSession(i)
		f.expectLaunch(id, sessions[id])
		_, err := f.orch.Launch(context.Background(), id)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.orch.Shutdown(ctx))

	assert.Empty(t, f.orch.ListRunning())
	for _, s := range sessions {
		s.AssertNumberOfCalls(t, "Close", 1)
	}
}
