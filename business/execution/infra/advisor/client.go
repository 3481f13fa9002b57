// Package advisor implements the optional AI advisory collaborator over
// HTTP. The engine treats it as fallible: any transport or protocol
// trouble surfaces as an error the optimizer degrades around.
package advisor

import (
	"context"
	"time"

	"github.com/fd1az/dexarb/business/execution/app"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/httpclient"
	"github.com/fd1az/dexarb/internal/logger"
)

var _ app.AIAdvisor = (*Client)(nil)

// ClientConfig holds configuration for the advisor client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultClientConfig returns sensible defaults for baseURL.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Client calls the advisory service's evaluate endpoint.
type Client struct {
	http   httpclient.Client
	logger logger.LoggerInterface
}

// NewClient creates an advisor client. An empty base URL is a
// configuration error; callers wanting no advisor pass a nil AIAdvisor
// instead.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("advisor base url is empty"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}

	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithProviderName("ai-advisor"),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(headers),
	)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeConfigurationError, "advisor http client")
	}

	return &Client{http: hc, logger: log}, nil
}

// EvaluateOpportunity posts the strategy snapshot and returns the
// advisor's verdict.
func (c *Client) EvaluateOpportunity(ctx context.Context, snapshot app.StrategySnapshot) (app.Advice, error) {
	var advice app.Advice

	resp, err := c.http.NewRequest().
		SetBody(snapshot).
		SetResult(&advice).
		Post(ctx, "/v1/evaluate")
	if err != nil {
		return app.Advice{}, apperror.Wrap(err, apperror.CodeAdvisorUnavailable, "evaluate request")
	}
	if resp.IsError() {
		return app.Advice{}, apperror.New(apperror.CodeAdvisorUnavailable,
			apperror.WithContext("advisor returned "+resp.String()))
	}

	switch advice.Recommendation {
	case app.AdvisorExecute, app.AdvisorSkip:
	default:
		return app.Advice{}, apperror.New(apperror.CodeAdvisorDeclined,
			apperror.WithContext("unrecognized recommendation "+string(advice.Recommendation)))
	}

	c.logger.Debug(ctx, "advisor evaluated strategy",
		"recommendation", advice.Recommendation,
		"confidence", advice.Confidence)
	return advice, nil
}
