package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AcceptHeader favors feed media types over generic XML.
const AcceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

// ErrBodyTooLarge is returned when a response exceeds the configured cap.
var ErrBodyTooLarge = errors.New("response body exceeds size cap")

// errPolicy marks a URL rejected by the host policy before any request is made.
var errPolicy = errors.New("host not permitted by feed policy")

var errUnrecognized = errors.New("not an rss or atom document")

const readChunk = 32 * 1024

type response struct {
	Status      int
	ContentType string
	Body        []byte
}

func (r response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// get performs one GET bounded by timeout. The body is read only for 2xx
// responses and never beyond maxBytes.
func get(ctx context.Context, client *http.Client, rawURL, userAgent string, timeout time.Duration, maxBytes int64) (response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", AcceptHeader)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type")}
	if !out.OK() {
		return out, nil
	}
	out.Body, err = readCapped(resp.Body, maxBytes)
	return out, err
}

// readCapped reads r in chunks and aborts as soon as more than max bytes arrive.
func readCapped(r io.Reader, max int64) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, readChunk)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if int64(len(buf)+n) > max {
				return nil, ErrBodyTooLarge
			}
			buf = append(buf, chunk[:n]...)
		}
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
