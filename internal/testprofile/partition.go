package testprofile

import (
	"fmt"
	"io/fs"
	"sort"
)

// skipDirs are never descended into while collecting test files.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	".svelte-kit":  {},
	".git":         {},
}

// Partition walks fsys and groups every test file by the profile that
// selects it. Every profile gets an entry, possibly empty; file lists are
// sorted. Files selected by no profile are left out.
func Partition(fsys fs.FS, profiles []Profile) (map[string][]string, error) {
	out := make(map[string][]string, len(profiles))
	for _, p := range profiles {
		out[p.Name] = []string{}
	}

	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && name != "." {
				return fs.SkipDir
			}
			return nil
		}
		if profile, ok := Classify(profiles, name); ok {
			out[profile] = append(out[profile], name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk test sources: %w", err)
	}

	for _, files := range out {
		sort.Strings(files)
	}
	return out, nil
}
