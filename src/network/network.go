package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
)

const defaultUserAgent = "feed-observer/1.0"

// AsyncNetworkManager is the broker HTTP client. Transport failures, 429 and 5xx
// answers are retried with exponential backoff; a transport failure also
// rotates the outbound proxy.
type AsyncNetworkManager struct {
	BaseURL      string
	Client       *http.Client
	UserAgent    string
	MaxRetries   int
	RetryDelay   time.Duration
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(baseURL string, cfg models.MNetworkConfig, log *logger.Logger) *AsyncNetworkManager {
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	nm := &AsyncNetworkManager{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		UserAgent:    ua,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   500 * time.Millisecond,
		ProxyManager: helpers.NewProxyManager(cfg.Proxies, log),
		Logger:       log,
	}
	nm.Client = nm.createClient(time.Duration(cfg.RequestTimeout) * time.Second)
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		Proxy:               nm.ProxyManager.Proxy,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// -----------------------------------------------------------------------------

// Do performs a request and returns the headers and body of a 2xx answer.
// Other answers become a RemoteCallError carrying the status and body.
func (nm *AsyncNetworkManager) Do(
	ctx context.Context,
	method, path string,
	params map[string]string,
	headers http.Header,
	body []byte,
) (http.Header, []byte, error) {
	reqURL, err := url.Parse(nm.BaseURL + path)
	if err != nil {
		return nil, nil, helpers.NewNetworkError(fmt.Sprintf("invalid url %s%s", nm.BaseURL, path), err)
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	operation := method + " " + path
	var respHeaders http.Header
	var respBody []byte

	err = helpers.RetryWithBackoff(ctx, operation, nm.MaxRetries+1, nm.RetryDelay, nm.Logger, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, finalURL, reader)
		if err != nil {
			return helpers.NewNetworkError(operation, err)
		}

		for k, values := range headers {
			for _, v := range values {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", nm.UserAgent)
		if body != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json; charset=UTF-8")
		}

		resp, err := nm.Client.Do(req)
		if err != nil {
			nm.rotateProxy()
			return helpers.NewNetworkError(operation, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return helpers.NewNetworkError(operation+": read body", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			nm.Logger.Debug("%s answered %d", operation, resp.StatusCode)
			return helpers.NewRemoteCallError(operation, resp.StatusCode, string(data))
		}

		respHeaders = resp.Header
		respBody = data
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return respHeaders, respBody, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}
	nm.ProxyManager.RotateProxy()
	// Drop pooled connections to the previous proxy
	nm.Client.CloseIdleConnections()
}
