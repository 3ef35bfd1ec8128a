package nadlan

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nadlan-export/internal/components/retry"
	"nadlan-export/internal/components/telemetry"
	"nadlan-export/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultBaseUrl = "https://www.nadlan.gov.il/Nadlan.REST/"

const (
	report_client_post        = "client.post"
	report_client_get         = "client.get"
	report_client_fetch_deals = "client.fetch-deals"
	report_client_lookup      = "client.lookup"
)

type ClientOptions struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl string
	// Timeout bounds a single request, defaults to a minute.
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing requests, 0 disables throttling.
	RequestsPerSecond float64
	// Retry applies to deal page fetches only.
	Retry     retry.Policy
	UserAgent string
	Telemetry telemetry.API
	// Dump receives every request/response pair when set.
	Dump restyutil.Output
}

// Client talks to the nadlan.gov.il REST API.
type Client struct {
	http  *resty.Client
	retry retry.Policy
	tel   telemetry.API
}

// legacyTLSConfig re-enables the RSA key exchange cipher suites the server
// still negotiates with, which the default crypto/tls configuration leaves out.
func legacyTLSConfig() *tls.Config {
	suites := tls.CipherSuites()
	ids := make([]uint16, 0, len(suites))
	for _, suite := range suites {
		ids = append(ids, suite.ID)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: ids,
	}
}

func NewClient(opts ClientOptions) *Client {
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	tel = telemetry.NewScopedAPI("nadlan_scraper", tel)

	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(baseUrl)
	httpClient.SetTimeout(timeout)
	httpClient.SetTLSClientConfig(legacyTLSConfig())
	// the server misbehaves on reused connections
	httpClient.SetCloseConnection(true)
	httpClient.SetHeader("accept", "application/json")
	if opts.UserAgent != "" {
		httpClient.SetHeader("user-agent", opts.UserAgent)
	}

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, "nadlan-export/internal/scrapers/nadlan")
	restyutil.DumpMessages(httpClient, opts.Dump)

	return &Client{
		http:  httpClient,
		retry: opts.Retry,
		tel:   tel,
	}
}

func (c *Client) url(path string) string {
	return c.http.BaseURL + path
}

func checkStatus(method, url string, res *resty.Response) error {
	code := res.StatusCode()
	if code >= http.StatusInternalServerError {
		return &TransientNetworkError{
			Method:     method,
			URL:        url,
			StatusCode: code,
			Err:        fmt.Errorf("status %d", code),
		}
	}
	if !res.IsSuccess() {
		return &StatusError{
			Method:     method,
			URL:        url,
			StatusCode: code,
			Body:       res.String(),
		}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return &TransientNetworkError{Method: http.MethodPost, URL: c.url(path), Err: err}
	}
	err = checkStatus(http.MethodPost, c.url(path), res)
	if err != nil {
		c.tel.ReportDebug(report_client_post, path, err)
		return err
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		return fmt.Errorf("json unmarshal %s: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return &TransientNetworkError{Method: http.MethodGet, URL: c.url(path), Err: err}
	}
	err = checkStatus(http.MethodGet, c.url(path), res)
	if err != nil {
		c.tel.ReportDebug(report_client_get, path, err)
		return err
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		return fmt.Errorf("json unmarshal %s: %w", path, err)
	}
	return nil
}
