package service

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kestrel-sh/kestrel/internal/domain/policy"
)

// Session holds the per-session approval state: the current approval mode and
// the set of "proceed always" grants accumulated from confirmation outcomes.
type Session struct {
	mu         sync.RWMutex
	mode       policy.ApprovalMode
	grants     *policy.Grants
	grantsPath string
	log        *slog.Logger
}

// NewSession creates a session in the given mode. When grantsPath is non-empty,
// previously persisted grants are loaded from it and new permanent grants are
// written back to it.
func NewSession(mode policy.ApprovalMode, grantsPath string, log *slog.Logger) (*Session, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("session: unknown approval mode %q", mode)
	}
	if log == nil {
		log = slog.Default()
	}

	grants := policy.NewGrants()
	if grantsPath != "" {
		loaded, err := policy.LoadGrants(grantsPath)
		if err != nil {
			return nil, err
		}
		grants = loaded
	}

	return &Session{
		mode:       mode,
		grants:     grants,
		grantsPath: grantsPath,
		log:        log,
	}, nil
}

// Mode returns the current approval mode.
func (s *Session) Mode() policy.ApprovalMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the approval mode. Calls already past their policy check
// are unaffected; the next decision sees the new mode.
func (s *Session) SetMode(mode policy.ApprovalMode) error {
	if !mode.Valid() {
		return fmt.Errorf("session: unknown approval mode %q", mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	s.log.Info("approval mode changed", "mode", mode, "description", mode.Description())
	return nil
}

// Grants exposes the session grant set for policy evaluation.
func (s *Session) Grants() *policy.Grants {
	return s.grants
}

// Grant records an "always allow" shape for the call. persist controls whether
// the grant outlives the session: proceed-always persists, the session variant
// does not.
func (s *Session) Grant(call policy.CallDescriptor, persist bool) {
	shape := policy.GrantShape{Tool: call.Tool}
	if call.Command != "" {
		shape.Command = rootOf(call.Command)
	}
	if call.Path != "" {
		shape.Path = call.Path
	}
	s.grants.Add(shape)
	s.log.Info("grant added", "tool", shape.Tool, "command", shape.Command, "path", shape.Path, "persist", persist)

	if persist && s.grantsPath != "" {
		if err := policy.SaveGrants(s.grantsPath, s.grants); err != nil {
			s.log.Warn("grant persistence failed", "path", s.grantsPath, "error", err)
		}
	}
}

// rootOf returns the leading binary of a command line.
func rootOf(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
