package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 8 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// getJSON performs a GET and decodes a JSON body into out. Non-2xx responses
// become a *GeocodingError carrying the status code.
func getJSON(ctx context.Context, hc *http.Client, provider, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &GeocodingError{Provider: provider, Err: err}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return &GeocodingError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &GeocodingError{Provider: provider, Status: resp.StatusCode, Err: fmt.Errorf("%s", body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GeocodingError{Provider: provider, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
