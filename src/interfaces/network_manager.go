package interfaces

import (
	"context"
	"net/http"
)

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with retry logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Do performs a request against path (relative to the base URL) and returns
	// the response headers and body of a 2xx answer.
	Do(ctx context.Context, method, path string, params map[string]string, headers http.Header, body []byte) (http.Header, []byte, error)
}
