package testprofile

import (
	"path"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// compiled caches glob matchers by pattern.
var compiled sync.Map // map[string][]glob.Glob

// matchAny reports whether any pattern matches name.
func matchAny(patterns []string, name string) bool {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	for _, p := range patterns {
		for _, g := range matchers(p) {
			if g.Match(name) {
				return true
			}
		}
	}
	return false
}

// matchers compiles pattern with '/' as separator. A "/**/" segment must
// also match zero directories (src/**/*.ts matches src/a.ts), which glob's
// super-asterisk does not do on its own, so a collapsed variant is added.
// Invalid patterns match nothing.
func matchers(pattern string) []glob.Glob {
	if v, ok := compiled.Load(pattern); ok {
		return v.([]glob.Glob)
	}

	variants := []string{pattern}
	if strings.Contains(pattern, "/**/") {
		variants = append(variants, strings.ReplaceAll(pattern, "/**/", "/"))
	}
	if strings.HasPrefix(pattern, "**/") {
		variants = append(variants, strings.TrimPrefix(pattern, "**/"))
	}

	gs := make([]glob.Glob, 0, len(variants))
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			continue
		}
		gs = append(gs, g)
	}
	actual, _ := compiled.LoadOrStore(pattern, gs)
	return actual.([]glob.Glob)
}
