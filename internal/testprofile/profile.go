// Package testprofile describes the test execution profiles of the frontend
// workspace and decides which profile owns a given test file.
package testprofile

// Environment is the simulated runtime a profile's tests execute in.
type Environment string

const (
	// EnvironmentJSDOM simulates a browser DOM.
	EnvironmentJSDOM Environment = "jsdom"
	// EnvironmentNode is a plain server process.
	EnvironmentNode Environment = "node"
)

const (
	ClientProfile = "client"
	ServerProfile = "server"
)

// Client-side component tests, e.g. src/lib/Button.svelte.test.ts.
const componentTestPattern = "src/**/*.svelte.{test,spec}.{js,ts}"

// Profile is one entry of the test workspace.
type Profile struct {
	Name        string      `yaml:"name"                 json:"name"`
	Environment Environment `yaml:"environment"          json:"environment"`
	Include     []string    `yaml:"include"              json:"include"`
	Exclude     []string    `yaml:"exclude,omitempty"    json:"exclude,omitempty"`
	ClearMocks  bool        `yaml:"clearMocks,omitempty" json:"clearMocks,omitempty"`
	SetupFiles  []string    `yaml:"setupFiles,omitempty" json:"setupFiles,omitempty"`
}

// Defaults returns the fixed workspace: "client" first, then "server".
// Each call returns fresh slices.
func Defaults() []Profile {
	return []Profile{
		{
			Name:        ClientProfile,
			Environment: EnvironmentJSDOM,
			Include:     []string{componentTestPattern},
			Exclude:     []string{"src/lib/server/**"},
			ClearMocks:  true,
			SetupFiles:  []string{"./vitest-setup-client.ts"},
		},
		{
			Name:        ServerProfile,
			Environment: EnvironmentNode,
			Include:     []string{"src/**/*.{test,spec}.{js,ts}"},
			Exclude:     []string{componentTestPattern},
		},
	}
}

// Selects reports whether path (slash-separated, relative to the project
// root) matches one of p's include patterns and none of its excludes.
func (p Profile) Selects(path string) bool {
	return matchAny(p.Include, path) && !matchAny(p.Exclude, path)
}

// Classify returns the name of the first profile that selects path.
func Classify(profiles []Profile, path string) (string, bool) {
	for _, p := range profiles {
		if p.Selects(path) {
			return p.Name, true
		}
	}
	return "", false
}
