package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
)

var singletonFiles = []string{"SingletonLock", "SingletonSocket", "SingletonCookie"}

var validBrowserID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// UserDataDirs maps browser ids to persistent Chrome profile directories under
// one root. A zero root disables persistence.
type UserDataDirs struct {
	root   string
	logger *zap.Logger
}

// NewUserDataDirs creates the resolver. root may be empty.
func NewUserDataDirs(root string, logger *zap.Logger) *UserDataDirs {
	return &UserDataDirs{root: root, logger: logger.Named("user_data")}
}

// path joins the id under the root, refusing ids that could escape it.
func (u *UserDataDirs) path(op, browserID string) (string, error) {
	if !validBrowserID.MatchString(browserID) || strings.Contains(browserID, "..") {
		return "", schemas.E(schemas.KindInvalidArgument, op, browserID, errors.New("browser id is not a safe directory name"))
	}
	return filepath.Join(u.root, browserID), nil
}

// Resolve returns the persistent directory for browserID, creating it when
// needed. It returns "" when persistence is disabled.
func (u *UserDataDirs) Resolve(browserID string) (string, error) {
	if u.root == "" {
		return "", nil
	}
	dir, err := u.path("browser.Resolve", browserID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(dir, "Default"), 0o755); err != nil {
		return "", fmt.Errorf("browser: create user data dir: %w", err)
	}
	return dir, nil
}

// Release makes the directory reusable after a session ends: it removes stale
// singleton locks and marks the last exit as clean so Chrome does not offer to
// restore the previous session.
func (u *UserDataDirs) Release(browserID string) error {
	if u.root == "" {
		return nil
	}
	dir, err := u.path("browser.Release", browserID)
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range singletonFiles {
		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			u.logger.Debug("Removed stale lock", zap.String("browser_id", browserID), zap.String("file", name))
		} else if !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := markCleanExit(dir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Clear deletes the persistent directory of browserID.
func (u *UserDataDirs) Clear(browserID string) error {
	if u.root == "" {
		return nil
	}
	dir, err := u.path("browser.Clear", browserID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("browser: clear user data dir: %w", err)
	}
	u.logger.Info("Cleared user data dir", zap.String("browser_id", browserID))
	return nil
}

func markCleanExit(dir string) error {
	prefs := filepath.Join(dir, "Default", "Preferences")
	data, err := os.ReadFile(prefs)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	patched := strings.ReplaceAll(string(data), `"exit_type":"Crashed"`, `"exit_type":"Normal"`)
	patched = strings.ReplaceAll(patched, `"exited_cleanly":false`, `"exited_cleanly":true`)
	if patched == string(data) {
		return nil
	}
	return os.WriteFile(prefs, []byte(patched), 0o644)
}
