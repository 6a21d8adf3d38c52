// Package stream maintains the WebSocket connections to the data
// provider: endpoint construction, subscription state, and a supervisor
// per feed that owns connect, read, and reconnect.
package stream

import (
	"fmt"
	"net/url"
	"strings"
)

// streamPath is the provider's data stream path.
const streamPath = "/api/data-stream"

// Endpoint builds the stream URL from a base URL and API key. HTTP(S)
// bases are converted to their WebSocket equivalents by swapping the
// scheme, so the same host configuration serves RPC and streaming.
func Endpoint(baseURL, apiKey string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", fmt.Errorf("api key is empty")
	}

	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("base url has no host")
	}

	u.Path = streamPath
	q := url.Values{}
	q.Set("api-key", apiKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
