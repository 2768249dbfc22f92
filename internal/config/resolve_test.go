package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rathix/todo-devserver/internal/testprofile"
)

var modes = []string{"development", "production", "test", "staging", ""}

func TestResolve_NoProxyTargetMeansNoRules(t *testing.T) {
	envs := []map[string]string{
		nil,
		{},
		{"OTHER": "http://localhost:4000"},
		{"VITE_DEV_PROXY_TARGET": "http://localhost:4000"},
		{ProxyTargetEnv: ""},
	}
	for _, mode := range modes {
		for _, vars := range envs {
			cfg := Resolve(mode, vars)
			assert.Empty(t, cfg.ProxyRules, "mode=%q env=%v", mode, vars)
			assert.Nil(t, cfg.ProxyTarget, "mode=%q env=%v", mode, vars)
			_, ok := cfg.Proxy()
			assert.False(t, ok)
		}
	}
}

func TestResolve_ProxyTargetInstallsAPIRule(t *testing.T) {
	for _, mode := range modes {
		for _, target := range []string{"http://localhost:4000", "https://api.internal:8443/base", "not a url"} {
			cfg := Resolve(mode, map[string]string{ProxyTargetEnv: target})

			require.Len(t, cfg.ProxyRules, 1)
			rule, ok := cfg.ProxyRules["/api"]
			require.True(t, ok)
			assert.Equal(t, target, rule.Target)
			assert.True(t, rule.ChangeOrigin)
			assert.False(t, rule.VerifyTLS)

			require.NotNil(t, cfg.ProxyTarget)
			assert.Equal(t, target, *cfg.ProxyTarget)

			got, ok := cfg.Proxy()
			assert.True(t, ok)
			assert.Equal(t, rule, got)
		}
	}
}

func TestResolve_IgnoresProcessEnvironment(t *testing.T) {
	t.Setenv(ProxyTargetEnv, "http://from-process:4000")

	assert.Nil(t, Resolve("development", nil).ProxyTarget)
	assert.Nil(t, Resolve("development", map[string]string{}).ProxyTarget)
}

func TestResolve_Deterministic(t *testing.T) {
	inputs := []map[string]string{
		{},
		{ProxyTargetEnv: "http://localhost:4000"},
	}
	for _, vars := range inputs {
		a := Resolve("development", vars)
		b := Resolve("development", vars)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("Resolve not deterministic (-first +second):\n%s", diff)
		}
	}
}

func TestResolve_ResultsDoNotShareState(t *testing.T) {
	a := Resolve("development", map[string]string{ProxyTargetEnv: "http://a"})
	a.Server.Headers["X-Mutated"] = "yes"
	a.Server.AllowedHosts[0] = "mutated"
	*a.ProxyTarget = "http://mutated"

	b := Resolve("development", map[string]string{ProxyTargetEnv: "http://a"})
	assert.NotContains(t, b.Server.Headers, "X-Mutated")
	assert.Equal(t, ".kavia.ai", b.Server.AllowedHosts[0])
	assert.Equal(t, "http://a", *b.ProxyTarget)
}

func TestResolve_ServerBindingConstant(t *testing.T) {
	want := ServerBinding{
		Host:         "0.0.0.0",
		Port:         3000,
		StrictPort:   true,
		AllowCORS:    true,
		AllowedHosts: []string{".kavia.ai"},
		Headers:      map[string]string{"Access-Control-Allow-Origin": "*"},
		Watch:        WatchOptions{UsePolling: true},
	}
	for _, mode := range modes {
		for _, vars := range []map[string]string{{}, {ProxyTargetEnv: "http://localhost:4000"}} {
			got := Resolve(mode, vars).Server
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("binding mismatch for mode %q (-want +got):\n%s", mode, diff)
			}
		}
	}
}

func TestResolve_TestProfiles(t *testing.T) {
	cfg := Resolve("test", nil)
	require.Len(t, cfg.TestProfiles, 2)
	assert.Equal(t, testprofile.ClientProfile, cfg.TestProfiles[0].Name)
	assert.Equal(t, testprofile.ServerProfile, cfg.TestProfiles[1].Name)
}

func TestResolve_ModeIsRecorded(t *testing.T) {
	assert.Equal(t, "production", Resolve("production", nil).Mode)
}

func TestResolve_Scenarios(t *testing.T) {
	t.Run("A: empty env in development", func(t *testing.T) {
		cfg := Resolve("development", map[string]string{})
		assert.Empty(t, cfg.ProxyRules)
		assert.Equal(t, 3000, cfg.Server.Port)
	})

	t.Run("B: proxy target set", func(t *testing.T) {
		cfg := Resolve("development", map[string]string{"DEV_PROXY_TARGET": "http://localhost:4000"})
		require.Len(t, cfg.ProxyRules, 1)
		assert.Equal(t, "http://localhost:4000", cfg.ProxyRules["/api"].Target)
	})

	t.Run("C: empty proxy target", func(t *testing.T) {
		for _, mode := range modes {
			cfg := Resolve(mode, map[string]string{"DEV_PROXY_TARGET": ""})
			if diff := cmp.Diff(Resolve(mode, map[string]string{}), cfg); diff != "" {
				t.Errorf("empty target differs from absent target (-absent +empty):\n%s", diff)
			}
		}
	})
}
