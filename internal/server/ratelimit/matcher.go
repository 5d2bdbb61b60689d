package ratelimit

import (
	"strings"
)

// unlimited holds the GET routes that are never limited: probes and scrapes.
var unlimited = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// MatchEndpoint returns the configuration for a request, or nil when none applies and the
// default limit should be used. An exact path wins over a prefix entry (a path ending in "/");
// among prefixes the longest wins. Unlimited routes get a zero-limit configuration.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && unlimited[path] {
		return &EndpointConfig{}
	}

	var prefix *EndpointConfig
	for i := range configs {
		ec := &configs[i]
		if ec.Method != method {
			continue
		}
		if ec.Path == path {
			return ec
		}
		if strings.HasSuffix(ec.Path, "/") && strings.HasPrefix(path, ec.Path) {
			if prefix == nil || len(ec.Path) > len(prefix.Path) {
				prefix = ec
			}
		}
	}
	return prefix
}
