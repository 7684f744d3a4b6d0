package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
	"github.com/ainasago/FishBrowser-sub004/internal/fingerprint"
)

// Refresh compiles p and stores the serialized artifacts, the source hash and
// the degraded flag on it.
func (c *Compiler) Refresh(p *fingerprint.Profile, now time.Time) (Artifacts, error) {
	a := c.Compile(p)

	headers, err := json.Marshal(a.Headers)
	if err != nil {
		return Artifacts{}, fmt.Errorf("compiler: marshal headers: %w", err)
	}
	scripts, err := json.Marshal(a.InitScripts)
	if err != nil {
		return Artifacts{}, fmt.Errorf("compiler: marshal scripts: %w", err)
	}
	opts, err := json.Marshal(a.ContextOptions)
	if err != nil {
		return Artifacts{}, fmt.Errorf("compiler: marshal context options: %w", err)
	}

	p.Compiled = &fingerprint.Compiled{
		HeadersJSON:        headers,
		ScriptsJSON:        scripts,
		ContextOptionsJSON: opts,
		GeneratorVersion:   fingerprint.GeneratorVersion,
		SourceHash:         p.SourceHash(),
		GeneratedAt:        now.UTC(),
	}
	p.Degraded = a.Degraded
	return a, nil
}

// Decode restores the artifacts stored on p without recompiling.
func Decode(p *fingerprint.Profile) (Artifacts, error) {
	const op = "compiler.Decode"
	if p.Compiled == nil {
		return Artifacts{}, schemas.E(schemas.KindNotFound, op, p.ID, errors.New("profile has no compiled artifacts"))
	}
	var a Artifacts
	if err := json.Unmarshal(p.Compiled.HeadersJSON, &a.Headers); err != nil {
		return Artifacts{}, schemas.E(schemas.KindInvalidArgument, op, p.ID, fmt.Errorf("headers: %w", err))
	}
	if err := json.Unmarshal(p.Compiled.ScriptsJSON, &a.InitScripts); err != nil {
		return Artifacts{}, schemas.E(schemas.KindInvalidArgument, op, p.ID, fmt.Errorf("scripts: %w", err))
	}
	if err := json.Unmarshal(p.Compiled.ContextOptionsJSON, &a.ContextOptions); err != nil {
		return Artifacts{}, schemas.E(schemas.KindInvalidArgument, op, p.ID, fmt.Errorf("context options: %w", err))
	}
	a.Degraded = p.Degraded
	return a, nil
}

// Ensure returns usable artifacts for p, recompiling when the stored ones are
// stale or unreadable. refreshed reports whether p was modified and needs saving.
func (c *Compiler) Ensure(p *fingerprint.Profile, now time.Time) (a Artifacts, refreshed bool, err error) {
	if !p.Stale() {
		a, err = Decode(p)
		if err == nil {
			return a, false, nil
		}
		c.logger.Warn("Stored artifacts are unreadable, recompiling.", zap.String("profile_id", p.ID), zap.Error(err))
	}
	a, err = c.Refresh(p, now)
	if err != nil {
		return Artifacts{}, false, err
	}
	c.logger.Debug("Recompiled profile artifacts.", zap.String("profile_id", p.ID), zap.Bool("degraded", a.Degraded))
	return a, true, nil
}

// Verify parses every init script so a broken template fails here instead of
// inside a browser.
func Verify(a Artifacts) error {
	var errs []error
	for _, s := range a.InitScripts {
		if _, err := goja.Compile(s.Name, s.Source, true); err != nil {
			errs = append(errs, fmt.Errorf("script %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
