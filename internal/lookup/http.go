package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
)

const userAgent = "chartcode/0.3 (+https://github.com/ppiankov/chartcode)"

// maxBodyBytes bounds how much of a lookup response is read
const maxBodyBytes = 1 << 20

// getJSON performs a GET and decodes the body into out. Network errors and
// retryable statuses come back as *TransientError
func getJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return NewTransientError(err, 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return NewTransientError(eris.Wrap(err, "read response"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if IsTransientHTTPStatus(resp.StatusCode) {
			return NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
