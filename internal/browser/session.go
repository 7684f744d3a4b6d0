// Package browser starts isolated Chrome sessions with compiled fingerprint
// overrides applied and manages their persistent user data directories.
package browser

import (
	"context"

	"github.com/ainasago/FishBrowser-sub004/internal/compiler"
)

// SessionSpec is everything a driver needs to start one session.
type SessionSpec struct {
	BrowserID string
	Artifacts compiler.Artifacts
	// UserDataDir is the persistent profile directory. Empty means a
	// throwaway directory.
	UserDataDir string
}

// Session is a live browser session.
type Session interface {
	// Done is closed once the session has ended for any reason.
	Done() <-chan struct{}
	// Close ends the session. It is safe to call after Done has fired.
	Close(ctx context.Context) error
	// PID is the OS process id of the browser, or 0 if unknown.
	PID() int
}
