package config

import "github.com/rathix/todo-devserver/internal/testprofile"

// ProxyTargetEnv is the environment variable naming the backend that /api
// requests are forwarded to during development.
const ProxyTargetEnv = "DEV_PROXY_TARGET"

// APIPrefix is the path prefix routed to the proxy target. It is kept on the
// forwarded request: /api/todos goes to <target>/api/todos.
const APIPrefix = "/api"

// ResolvedConfig is the dev server configuration for one process lifetime.
// It is never modified after Resolve returns; reloads produce a new value.
type ResolvedConfig struct {
	Mode string `yaml:"mode" json:"mode"`
	// ProxyTarget is nil when proxying is disabled.
	ProxyTarget  *string               `yaml:"proxyTarget,omitempty"  json:"proxyTarget,omitempty"`
	Server       ServerBinding         `yaml:"server"                 json:"server"`
	ProxyRules   map[string]ProxyRule  `yaml:"proxyRules,omitempty"   json:"proxyRules,omitempty"`
	TestProfiles []testprofile.Profile `yaml:"testProfiles"           json:"testProfiles"`
}

// ServerBinding is the fixed network binding of the dev server.
type ServerBinding struct {
	Host       string `yaml:"host"       json:"host"`
	Port       int    `yaml:"port"       json:"port"`
	StrictPort bool   `yaml:"strictPort" json:"strictPort"`
	AllowCORS  bool   `yaml:"cors"       json:"cors"`
	// AllowedHosts entries starting with "." match the domain and all of
	// its subdomains.
	AllowedHosts []string          `yaml:"allowedHosts" json:"allowedHosts"`
	Headers      map[string]string `yaml:"headers"      json:"headers"`
	Watch        WatchOptions      `yaml:"watch"        json:"watch"`
}

// WatchOptions controls how configuration files are watched for changes.
type WatchOptions struct {
	// UsePolling stats files on an interval instead of relying on
	// filesystem notifications, which bind mounts often do not deliver.
	UsePolling bool `yaml:"usePolling" json:"usePolling"`
}

// ProxyRule forwards requests under a path prefix to Target.
type ProxyRule struct {
	// Target is taken verbatim from the environment and not validated.
	Target       string `yaml:"target"       json:"target"`
	ChangeOrigin bool   `yaml:"changeOrigin" json:"changeOrigin"`
	VerifyTLS    bool   `yaml:"verifyTLS"    json:"verifyTLS"`
}

// Proxy returns the /api forwarding rule, if proxying is enabled.
func (c ResolvedConfig) Proxy() (ProxyRule, bool) {
	if c.ProxyTarget == nil {
		return ProxyRule{}, false
	}
	rule, ok := c.ProxyRules[APIPrefix]
	return rule, ok
}
