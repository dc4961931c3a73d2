// Package template implements the {{variable}} substitution engine used for
// mail-merge personalization. Rendering is pure string transformation: no I/O,
// no state, no template compilation step.
package template

import (
	"regexp"
	"sort"
	"strings"
)

// placeholderPattern matches {{name}} tokens where name is one or more word
// characters (letters, digits, underscore). Whitespace inside the braces is
// not part of the syntax.
var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Variables maps placeholder names to their per-recipient values.
type Variables map[string]string

// Render replaces every literal occurrence of {{key}} in tmpl with the value
// for that key. Keys absent from vars leave their placeholders untouched.
//
// Replacement is iterative over the variable set, one key at a time, so a
// substituted value that itself contains {{otherKey}} syntax may be expanded
// again by a later key in the same call. This matches the long-standing
// behavior of the substitution loop and is deliberately not corrected; keys
// are visited in lexicographic order so the result is deterministic.
func Render(tmpl string, vars Variables) string {
	if len(vars) == 0 {
		return tmpl
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := tmpl
	for _, key := range keys {
		result = strings.ReplaceAll(result, "{{"+key+"}}", vars[key])
	}
	return result
}

// ExtractVariables returns the deduplicated set of placeholder names
// referenced by tmpl. Order is not significant.
func ExtractVariables(tmpl string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(tmpl, -1)

	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Validate reports whether vars provides every placeholder tmpl references.
// The second return value lists the missing names in the order they first
// appear in the template. Validate is a pure function and never fails.
func Validate(tmpl string, vars Variables) (bool, []string) {
	var missing []string
	for _, name := range ExtractVariables(tmpl) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing
}
