package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused rejects a call into a venue module whose operations the
// operator has suspended.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the operator's per-module pause switches. The zero view
// (nil) pauses nothing, so engines run unguarded until wired to one.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. Engines invoke it
// at the top of every mutating operation.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
