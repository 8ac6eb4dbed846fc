package interfaces

import (
	"net/http"
	"net/url"
)

// -----------------------------------------------------------------------------
// IProxyManager selects and rotates the outbound proxy of the broker client.
// -----------------------------------------------------------------------------

type IProxyManager interface {

	// -----------------------------------------------------------------------------

	// GetCurrentProxy returns the currently selected proxy URL (or empty if none).
	GetCurrentProxy() string

	// -----------------------------------------------------------------------------

	// Proxy is installed as the http.Transport proxy func.
	Proxy(req *http.Request) (*url.URL, error)

	// -----------------------------------------------------------------------------

	// RotateProxy switches to the next configured proxy.
	RotateProxy()

	// -----------------------------------------------------------------------------

	// HasProxies returns true if there are proxies configured.
	HasProxies() bool
}
