package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/telemetry"
)

const maxBodyBytes = 8 << 20

// TokenSource supplies the bearer token for authenticated requests.
type TokenSource interface {
	Token() string
}

// HTTPTransport performs telemetry requests against the station REST API.
type HTTPTransport struct {
	client  *http.Client
	baseURL *url.URL
	tokens  TokenSource
}

// NewHTTPTransport creates a transport for baseURL. timeout bounds every
// request; zero leaves it to the context.
func NewHTTPTransport(baseURL string, timeout time.Duration, tokens TokenSource) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = timeout

	return &HTTPTransport{client: client, baseURL: u, tokens: tokens}, nil
}

// Perform implements telemetry.Transport. Non-2xx responses are returned as
// *resource.StatusError.
func (t *HTTPTransport) Perform(ctx context.Context, req telemetry.Request) ([]byte, error) {
	endpoint := t.endpoint(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Kind.Authenticated() && t.tokens != nil {
		if tok := t.tokens.Token(); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	logger.Debug().Str("url", endpoint).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Msg("transport: response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &resource.StatusError{Code: resp.StatusCode}
	}
	return unwrap(body), nil
}

func (t *HTTPTransport) endpoint(req telemetry.Request) string {
	u := *t.baseURL
	id := req.StationID

	switch req.Kind {
	case telemetry.ResourceStations:
		u.Path += "/stations"
	case telemetry.ResourceWidget:
		u.Path += "/stations/" + id + "/widget"
	default:
		u.Path += "/stations/" + id + "/" + string(req.Kind)
		q := url.Values{}
		q.Set("from", req.From.UTC().Format(time.RFC3339))
		q.Set("to", req.To.UTC().Format(time.RFC3339))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// unwrap strips the {"data": ...} envelope some deployments wrap payloads in.
func unwrap(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || !(data.IsObject() || data.IsArray()) {
		return body
	}
	return []byte(data.Raw)
}
