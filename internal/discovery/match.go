package discovery

import (
	"fmt"
	"slices"
	"strings"

	"github.com/muurk/upnpdiscover/internal/description"
)

// Match selects devices by fields of their description's device element.
// Every key must be present and its text must equal one of the listed
// values. A key with no values matches nothing.
type Match map[string][]string

// Matches reports whether device satisfies every field of m. A nil device
// never matches.
func (m Match) Matches(device map[string]any) bool {
	if device == nil {
		return false
	}
	for key, values := range m {
		v, ok := device[key]
		if !ok {
			return false
		}
		if !slices.Contains(values, description.Text(v)) {
			return false
		}
	}
	return true
}

// Add appends an accepted value for key
func (m Match) Add(key, value string) {
	m[key] = append(m[key], value)
}

// String renders m as sorted key=value pairs
func (m Match) String() string {
	var parts []string
	for key, values := range m {
		for _, v := range values {
			parts = append(parts, key+"="+v)
		}
	}
	slices.Sort(parts)
	return strings.Join(parts, " ")
}

// ParseMatch parses "key=value" or "key:value" arguments. Repeating a key
// accepts any of its values.
func ParseMatch(args []string) (Match, error) {
	m := make(Match)
	for _, arg := range args {
		i := strings.IndexAny(arg, "=:")
		if i <= 0 {
			return nil, fmt.Errorf("invalid match %q: expected key=value", arg)
		}
		m.Add(arg[:i], arg[i+1:])
	}
	return m, nil
}
