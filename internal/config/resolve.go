package config

import (
	"github.com/caarlos0/env/v11"

	"github.com/rathix/todo-devserver/internal/testprofile"
)

// resolverEnv lists the variables Resolve consumes.
type resolverEnv struct {
	ProxyTarget string `env:"DEV_PROXY_TARGET"`
}

// Resolve builds the configuration for mode from vars. It reads only the
// given map, never the process environment, and performs no I/O.
//
// An empty DEV_PROXY_TARGET is the same as an unset one.
func Resolve(mode string, vars map[string]string) ResolvedConfig {
	if vars == nil {
		// A nil Environment makes env fall back to os.Environ.
		vars = map[string]string{}
	}
	var e resolverEnv
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		// Only string fields: parsing cannot fail, but never proxy on a bad parse.
		e = resolverEnv{}
	}

	cfg := ResolvedConfig{
		Mode:         mode,
		Server:       defaultBinding(),
		TestProfiles: testprofile.Defaults(),
	}

	if e.ProxyTarget != "" {
		target := e.ProxyTarget
		cfg.ProxyTarget = &target
		cfg.ProxyRules = map[string]ProxyRule{
			APIPrefix: {
				Target:       target,
				ChangeOrigin: true,
				VerifyTLS:    false,
			},
		}
	}

	return cfg
}

func defaultBinding() ServerBinding {
	return ServerBinding{
		Host:         "0.0.0.0",
		Port:         3000,
		StrictPort:   true,
		AllowCORS:    true,
		AllowedHosts: []string{".kavia.ai"},
		Headers: map[string]string{
			"Access-Control-Allow-Origin": "*",
		},
		Watch: WatchOptions{UsePolling: true},
	}
}
