// Package session holds the per-virtual-user context that templated request
// attributes are resolved against. A session carries scenario variables and
// values captured from earlier responses; resolution is strict, so a
// placeholder that cannot be resolved fails the build of the request that
// referenced it instead of being sent as-is.
package session

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var exprPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// ResolutionError reports a template expression that could not be resolved
// against the session.
type ResolutionError struct {
	Expression string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unresolved expression: %s", e.Expression)
}

// Session is a per-virtual-user key-value context. It is safe for concurrent
// use, although in practice each virtual user owns its clone.
type Session struct {
	id       string
	mu       sync.RWMutex
	vars     map[string]any
	captures map[string]any
	funcs    *Registry
}

// New creates an empty session with a fresh identity.
func New() *Session {
	return &Session{
		id:       uuid.New().String(),
		vars:     make(map[string]any),
		captures: make(map[string]any),
		funcs:    NewRegistry(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Set stores a scenario variable.
func (s *Session) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// SetAll stores multiple scenario variables.
func (s *Session) SetAll(vars map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range vars {
		s.vars[k] = v
	}
}

// SetCapture stores a value captured from a response. Captures shadow
// variables of the same name.
func (s *Session) SetCapture(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures[name] = value
}

// Get returns a variable or capture by name, captures first.
func (s *Session) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.captures[name]; ok {
		return v, true
	}
	if v, ok := s.vars[name]; ok {
		return v, true
	}
	return nil, false
}

// Has reports whether a variable or capture exists.
func (s *Session) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Clone creates an independent copy with its own identity. Each virtual user
// gets a clone of the base session so captures stay private to the user.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := New()
	for k, v := range s.vars {
		clone.vars[k] = v
	}
	for k, v := range s.captures {
		clone.captures[k] = v
	}
	return clone
}

// ResolveString substitutes every {{expr}} placeholder in input. The first
// expression that cannot be resolved aborts with a ResolutionError.
func (s *Session) ResolveString(input string) (string, error) {
	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		val, ok := s.lookup(expr)
		if !ok {
			if firstErr == nil {
				firstErr = &ResolutionError{Expression: expr}
			}
			return match
		}
		return fmt.Sprintf("%v", val)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveBytes resolves a template and returns the result as raw bytes.
func (s *Session) ResolveBytes(input string) ([]byte, error) {
	out, err := s.ResolveString(input)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// ResolveStrings resolves each template in a list, preserving order.
func (s *Session) ResolveStrings(inputs []string) ([]string, error) {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		resolved, err := s.ResolveString(in)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// ResolveValue resolves a scenario attribute value. String values are
// templates; slices resolve element-wise; anything else is stringified.
func (s *Session) ResolveValue(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		resolved, err := s.ResolveString(v)
		if err != nil {
			return nil, err
		}
		return []string{resolved}, nil
	case []string:
		return s.ResolveStrings(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			resolved, err := s.ResolveValue(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved...)
		}
		return out, nil
	default:
		return []string{fmt.Sprintf("%v", v)}, nil
	}
}

func (s *Session) lookup(expr string) (any, bool) {
	if strings.HasPrefix(expr, "$") {
		if val := os.Getenv(expr[1:]); val != "" {
			return val, true
		}
		return nil, false
	}

	if strings.Contains(expr, "(") {
		return s.funcs.Call(expr)
	}

	return s.Get(expr)
}
