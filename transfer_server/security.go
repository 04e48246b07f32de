package main

import (
	"net/url"
	"strings"
	"sync"
)

var (
	websocketOriginsMu      sync.RWMutex
	allowedWebSocketOrigins map[string]struct{}
	allowAllOrigins         = true
)

func parseAllowedOriginsFromEnv(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		out = append(out, origin)
	}
	return out
}

func normalizeOrigin(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// setAllowedWebSocketOrigins installs the origin allow-list. An empty
// list or a "*" entry allows every origin, which also admits the null
// origins browser extensions send.
func setAllowedWebSocketOrigins(origins []string) {
	next := make(map[string]struct{}, len(origins))
	allowAll := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
			continue
		}
		normalized := normalizeOrigin(origin)
		if normalized == "" {
			continue
		}
		next[normalized] = struct{}{}
	}
	websocketOriginsMu.Lock()
	allowedWebSocketOrigins = next
	allowAllOrigins = allowAll
	websocketOriginsMu.Unlock()
}

func isWebSocketOriginAllowed(origin string) bool {
	websocketOriginsMu.RLock()
	defer websocketOriginsMu.RUnlock()
	if allowAllOrigins {
		return true
	}
	normalized := normalizeOrigin(origin)
	if normalized == "" {
		return false
	}
	_, ok := allowedWebSocketOrigins[normalized]
	return ok
}
