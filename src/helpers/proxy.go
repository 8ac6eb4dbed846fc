package helpers

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"feed-observer/src/logger"
)

// -----------------------------------------------------------------------------

// ProxyManager holds the configured outbound proxies of the broker client.
// The transport asks for the current proxy on every new connection, so a
// rotation takes effect without rebuilding the client.
type ProxyManager struct {
	proxies []*url.URL
	index   int
	mu      sync.Mutex
	logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewProxyManager(proxies []string, log *logger.Logger) *ProxyManager {
	pm := &ProxyManager{logger: log}

	// Validate and format proxies on init
	for _, p := range proxies {
		if !ValidateProxy(p) {
			log.Warning("Ignoring invalid proxy %q", p)
			continue
		}
		u, err := url.Parse(FormatProxy(p))
		if err != nil {
			log.Warning("Ignoring invalid proxy %q: %v", p, err)
			continue
		}
		pm.proxies = append(pm.proxies, u)
	}
	return pm
}

// -----------------------------------------------------------------------------

// GetCurrentProxy returns the selected proxy URL, empty when none is configured
func (pm *ProxyManager) GetCurrentProxy() string {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) == 0 {
		return ""
	}
	return pm.proxies[pm.index].String()
}

// -----------------------------------------------------------------------------

// Proxy is an http.Transport proxy func. Without configured proxies it falls
// back to the environment (HTTPS_PROXY, NO_PROXY).
func (pm *ProxyManager) Proxy(req *http.Request) (*url.URL, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) == 0 {
		return http.ProxyFromEnvironment(req)
	}
	return pm.proxies[pm.index], nil
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) RotateProxy() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) <= 1 {
		return
	}

	pm.index = (pm.index + 1) % len(pm.proxies)
	pm.logger.Info("Rotating proxy to: %s", pm.proxies[pm.index].Redacted())
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) HasProxies() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.proxies) > 0
}

// -----------------------------------------------------------------------------

// ValidateProxy checks if a proxy string is roughly valid.
func ValidateProxy(proxyStr string) bool {
	if strings.TrimSpace(proxyStr) == "" {
		return false
	}
	u, err := url.Parse(FormatProxy(proxyStr))
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "socks5")
}

// -----------------------------------------------------------------------------

// FormatProxy ensures the proxy has a scheme.
func FormatProxy(proxyStr string) string {
	proxyStr = strings.TrimSpace(proxyStr)
	if !strings.Contains(proxyStr, "://") {
		return "http://" + proxyStr
	}
	return proxyStr
}
