package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

// RateLimitError is returned on HTTP 429. RetryAfter carries the server's
// requested backoff, zero when the header was absent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("opensky rate limited, retry after %s", e.RetryAfter)
	}
	return "opensky rate limited"
}

// ClientConfig carries the OpenSky endpoint and optional OAuth2
// client-credentials settings. Anonymous access applies when ClientID is
// empty.
type ClientConfig struct {
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client fetches state vectors from the OpenSky REST API for a bounding
// box. Token refresh is handled by the oauth2 transport.
type Client struct {
	apiURL     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates an OpenSky client. With credentials configured, the
// underlying transport requests and refreshes client-credentials tokens
// transparently.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" {
		oauthCfg := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = oauthCfg.Client(context.Background())
		httpClient.Timeout = timeout
	}

	return &Client{
		apiURL:     cfg.APIURL,
		httpClient: httpClient,
		logger:     log.Named("opensky"),
	}
}

// FetchStates queries /states/all for the bounding box and returns the
// parsed position samples. Vectors without an identity are dropped.
func (c *Client) FetchStates(ctx context.Context, bbox geo.BoundingBox) ([]tracking.PositionSample, error) {
	query := url.Values{}
	query.Set("lamin", strconv.FormatFloat(bbox.LatMin, 'f', 6, 64))
	query.Set("lomin", strconv.FormatFloat(bbox.LonMin, 'f', 6, 64))
	query.Set("lamax", strconv.FormatFloat(bbox.LatMax, 'f', 6, 64))
	query.Set("lomax", strconv.FormatFloat(bbox.LonMax, 'f', 6, 64))
	urlStr := fmt.Sprintf("%s/states/all?%s", c.apiURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensky request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching OpenSky state vectors", logger.String("url", urlStr))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute opensky request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("Unexpected OpenSky status code",
			logger.Int("status_code", resp.StatusCode),
			logger.String("body", string(body)))
		return nil, fmt.Errorf("unexpected opensky status code: %d", resp.StatusCode)
	}

	var decoded stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to parse opensky JSON: %w", err)
	}

	batchTime := time.Unix(decoded.Time, 0).UTC()
	samples := make([]tracking.PositionSample, 0, len(decoded.States))
	for _, state := range decoded.States {
		if sample, ok := parseState(state, batchTime); ok {
			samples = append(samples, sample)
		}
	}

	c.logger.Debug("Fetched OpenSky state vectors",
		logger.Int("states", len(decoded.States)),
		logger.Int("samples", len(samples)))
	return samples, nil
}
