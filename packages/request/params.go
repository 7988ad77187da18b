package request

import (
	"fmt"
	"sort"

	"github.com/strafehq/strafe/packages/core/scenario"
	"github.com/strafehq/strafe/packages/core/session"
)

// Param is one resolved form parameter entry.
type Param struct {
	Name  string
	Value string
}

// MergeParams resolves the explicitly declared parameters and the generic
// form map into one ordered parameter list.
//
// Override rule: a name present in both sources takes the explicit entries
// wholesale; form-derived entries for that name are dropped. The result
// order is deterministic: form-map keys contribute first in lexicographic
// order (explicit overrides substituted in place), then explicit-only
// parameters in declaration order. With no form map the result is exactly
// the resolved explicit parameters in declaration order.
func MergeParams(explicit []*scenario.Param, form map[string]any, s *session.Session) ([]Param, error) {
	resolved := make([]Param, 0, len(explicit))
	byName := make(map[string][]Param)

	for _, decl := range explicit {
		values, err := s.ResolveValue(decl.Value)
		if err != nil {
			return nil, fmt.Errorf("resolving parameter %q: %w", decl.Name, err)
		}
		for _, v := range values {
			entry := Param{Name: decl.Name, Value: v}
			resolved = append(resolved, entry)
			byName[decl.Name] = append(byName[decl.Name], entry)
		}
	}

	if len(form) == 0 {
		return resolved, nil
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := make([]Param, 0, len(resolved)+len(form))
	overridden := make(map[string]bool)

	for _, name := range keys {
		if entries, ok := byName[name]; ok {
			merged = append(merged, entries...)
			overridden[name] = true
			continue
		}
		values, err := s.ResolveValue(form[name])
		if err != nil {
			return nil, fmt.Errorf("resolving form value %q: %w", name, err)
		}
		for _, v := range values {
			merged = append(merged, Param{Name: name, Value: v})
		}
	}

	for _, entry := range resolved {
		if !overridden[entry.Name] {
			merged = append(merged, entry)
		}
	}

	return merged, nil
}
