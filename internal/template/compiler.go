// Package template renders campaign message templates against contact
// attributes using {placeholder} substitution.
package template

import (
	"regexp"
)

// placeholder pattern: {variable_name}
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Compile replaces every {key} occurrence with vars[key]. Unresolved
// placeholders are left verbatim; the function never drops content and
// never fails, so it is safe to call repeatedly on the same input.
func Compile(tmpl string, vars map[string]string) string {
	if tmpl == "" || len(vars) == 0 {
		return tmpl
	}
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := match[1 : len(match)-1]
		if value, ok := vars[key]; ok {
			return value
		}
		return match
	})
}

// Merge layers variable maps left to right, later maps overriding earlier
// ones. Dynamic contact properties are merged last and may shadow the fixed
// variables when names collide; that shadowing is intentional.
func Merge(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
