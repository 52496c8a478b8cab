package remote

import (
	"bytes"
	"io"
	"net/http"
	"time"
)

const defaultBackoff = time.Second

// retryDo executes an HTTP request with exponential backoff retry.
// Retries on network errors, HTTP 429, and HTTP 5xx responses.
// Does not retry 4xx client errors. Waiting between attempts stops early
// when the request context is done.
// For requests with a body, the body is buffered and replayed on retry.
func retryDo(client *http.Client, req *http.Request, maxAttempts int, backoff time.Duration) (*http.Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	// Buffer body for replay on retry.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
	}

	ctx := req.Context()
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
			backoff *= 2
		}

		// Reset body for each attempt.
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			lastResp = nil
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// Retryable: 429 or 5xx. Keep the final response for the caller.
		if attempt == maxAttempts-1 {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastResp = resp
		lastErr = nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

// isRetryableStatus returns true for HTTP status codes that should be retried.
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
