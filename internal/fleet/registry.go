package fleet

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry   = make(map[string]Screen)
	registryMu sync.RWMutex
)

// Register adds a screen to the registry.
// Panics if a screen with the same key is already registered.
func Register(s Screen) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[s.Info.Key]; exists {
		panic(fmt.Sprintf("screen already registered: %s", s.Info.Key))
	}
	registry[s.Info.Key] = s
}

// Get returns a screen by key.
// Returns false if not found.
func Get(key string) (Screen, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[key]
	return s, ok
}

// All returns all registered screens.
// Sorted by group then by key for consistent ordering.
func All() []Screen {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Screen, 0, len(registry))
	for _, s := range registry {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Group != result[j].Info.Group {
			return result[i].Info.Group < result[j].Info.Group
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// ByGroup returns all screens of a group, sorted by key.
func ByGroup(group string) []Screen {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []Screen
	for _, s := range registry {
		if s.Info.Group == group {
			result = append(result, s)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// Groups returns all unique group names.
// Sorted alphabetically.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, s := range registry {
		seen[s.Info.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// AttachViews gives every registered screen its column layout.
// It fails without changing anything if a screen has no view or a view
// names an unknown screen.
func AttachViews(views map[string]View) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	var errs []string
	for key := range registry {
		if _, ok := views[key]; !ok {
			errs = append(errs, fmt.Sprintf("screen %q has no view", key))
		}
	}
	for key := range views {
		if _, ok := registry[key]; !ok {
			errs = append(errs, fmt.Sprintf("view %q names no registered screen", key))
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("attach views: %s", strings.Join(errs, "; "))
	}

	for key, s := range registry {
		v := views[key]
		s.View = &v
		registry[key] = s
	}
	return nil
}
