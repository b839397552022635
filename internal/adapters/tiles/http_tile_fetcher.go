package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"route-profile-service/internal/platform/obs"
	"strings"
	"time"
)

// Largest tile payload accepted from upstream.
const maxTileBytes = 8 << 20

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// HTTPTileFetcher downloads tiles from a tile server.
// Transient failures (network errors, 429 and 5xx) are retried with
// exponential backoff while the context allows.
type HTTPTileFetcher struct {
	session     *http.Client
	userAgent   string
	maxAttempts int
	backoff     time.Duration
}

func NewHTTPTileFetcher(client *http.Client, userAgent string) *HTTPTileFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPTileFetcher{
		session:     client,
		userAgent:   userAgent,
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
	}
}

func (f *HTTPTileFetcher) FetchTile(ctx context.Context, url string) (_ []byte, err error) {
	defer obs.Time(ctx, "tiles.FetchTile")(&err)

	resp, err := f.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch tile %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read tile %s: %w", url, err)
	}
	if len(data) > maxTileBytes {
		return nil, fmt.Errorf("tile %s exceeds %d bytes", url, maxTileBytes)
	}

	return data, nil
}

func (f *HTTPTileFetcher) do(req *http.Request) (*http.Response, error) {
	resp, err := f.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429/5xx responses)
// using exponential backoff while respecting context cancellation.
func (f *HTTPTileFetcher) doWithRetry(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	backoff := f.backoff

	var lastErr error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := f.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == f.maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}
