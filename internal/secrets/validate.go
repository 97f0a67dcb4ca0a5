package secrets

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ValidationError lists required environment variables that are unset or
// set to an empty value.
type ValidationError struct {
	Missing []string
	Empty   []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Empty) > 0 {
		parts = append(parts, fmt.Sprintf("empty values for required environment variables: %s", strings.Join(e.Empty, ", ")))
	}
	return strings.Join(parts, "; ")
}

// RequireEnv checks that every key is set to a non-blank value.
func RequireEnv(keys ...string) error {
	return require(keys, os.LookupEnv)
}

func require(keys []string, lookup func(string) (string, bool)) error {
	var e ValidationError
	for _, k := range keys {
		v, ok := lookup(k)
		switch {
		case !ok:
			e.Missing = append(e.Missing, k)
		case strings.TrimSpace(v) == "":
			e.Empty = append(e.Empty, k)
		}
	}
	if len(e.Missing) == 0 && len(e.Empty) == 0 {
		return nil
	}
	sort.Strings(e.Missing)
	sort.Strings(e.Empty)
	return &e
}
