package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// LookupFunc returns the value of a named variable. os.LookupEnv satisfies
// it.
type LookupFunc func(name string) (string, bool)

var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// Resolve replaces ${VAR} and ${VAR:-default} references in data. A
// reference with no value and no default is an error naming every such
// variable. A nil lookup resolves only defaults.
func Resolve(data []byte, lookup LookupFunc) ([]byte, error) {
	missing := map[string]bool{}
	out := refPattern.ReplaceAllFunc(data, func(ref []byte) []byte {
		m := refPattern.FindSubmatch(ref)
		name := string(m[1])
		if lookup != nil {
			if v, ok := lookup(name); ok {
				return []byte(v)
			}
		}
		if len(m[2]) > 0 {
			return m[3]
		}
		missing[name] = true
		return ref
	})
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unresolved config variables: %s", strings.Join(names, ", "))
	}
	return out, nil
}
