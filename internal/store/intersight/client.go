package intersight

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strconv"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/metal-toolbox/bootorder/internal/configuration"
	"github.com/metal-toolbox/bootorder/internal/metrics"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/metal-toolbox/bootorder/internal/store/query"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Client is an Intersight REST API resource client.
type Client struct {
	baseURL url.URL
	client  *retryablehttp.Client
}

// New returns a client for the configured Intersight endpoint.
//
// Requests are retried by the transport on connection errors and 429/5xx
// responses, authenticated with OAuth2 client credentials unless disabled.
func New(ctx context.Context, opts configuration.IntersightOptions) (*Client, error) {
	baseURL, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, errors.Wrap(ErrIntersightConfig, err.Error())
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(ErrIntersightConfig, err.Error())
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		// nolint:gosec // explicitly requested for lab appliances with self signed certificates
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var transport http.RoundTripper = otelhttp.NewTransport(base)

	if !opts.DisableOAuth {
		transport, err = oauthTransport(ctx, &opts, transport)
		if err != nil {
			return nil, err
		}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.Logger = slog.Default()
	// hand the last response back so API errors can be decoded
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		Jar:       jar,
	}

	return NewWithClient(baseURL, retryClient), nil
}

// NewWithClient returns a client using the given retryable http client as is.
func NewWithClient(baseURL *url.URL, client *retryablehttp.Client) *Client {
	return &Client{baseURL: *baseURL, client: client}
}

func oauthTransport(ctx context.Context, opts *configuration.IntersightOptions, base http.RoundTripper) (http.RoundTripper, error) {
	// token requests go through the same instrumented transport
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base, Timeout: opts.Timeout})

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		provider, err := oidc.NewProvider(ctx, opts.OidcIssuerEndpoint)
		if err != nil {
			return nil, errors.Wrap(ErrIntersightConfig, "oidc discovery: "+err.Error())
		}

		tokenURL = provider.Endpoint().TokenURL
	}

	oauthConfig := clientcredentials.Config{
		ClientID:     opts.OidcClientID,
		ClientSecret: opts.OidcClientSecret,
		TokenURL:     tokenURL,
		Scopes:       opts.OidcClientScopes,
	}

	return &oauth2.Transport{
		Source: oauthConfig.TokenSource(ctx),
		Base:   base,
	}, nil
}

// Get returns the single resource under resourcePath matching the query.
func (c *Client) Get(ctx context.Context, resourcePath string, q *query.Query) (*query.Response, error) {
	resp, body, err := c.do(ctx, http.MethodGet, resourcePath, q.Values(), nil)
	if err != nil {
		return resp, err
	}

	results, err := decodeResults(body)
	if err != nil {
		return resp, err
	}

	switch len(results) {
	case 0:
		return resp, errors.Wrap(query.ErrNotFound, resourcePath)
	case 1:
		resp.Document = results[0]
		return resp, nil
	default:
		return resp, errors.Wrapf(query.ErrAmbiguousMatch, "%s: %d results", resourcePath, len(results))
	}
}

func (c *Client) Create(ctx context.Context, resourcePath string, body model.Document) (*query.Response, error) {
	return c.write(ctx, http.MethodPost, resourcePath, nil, body)
}

func (c *Client) Update(ctx context.Context, resourcePath string, filter query.Filter, body model.Document) (*query.Response, error) {
	values := url.Values{}
	values.Set("$filter", filter.String())

	return c.write(ctx, http.MethodPost, resourcePath, values, body)
}

func (c *Client) Delete(ctx context.Context, resourcePath, moid string) (*query.Response, error) {
	if moid == "" {
		return nil, ErrNoMoid
	}

	resp, _, err := c.do(ctx, http.MethodDelete, path.Join(resourcePath, moid), nil, nil)
	if err != nil {
		return resp, err
	}

	resp.Document = model.Document{}

	return resp, nil
}

func (c *Client) write(ctx context.Context, method, resourcePath string, values url.Values, doc model.Document) (*query.Response, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(ErrEncodeBody, err.Error())
	}

	resp, body, err := c.do(ctx, method, resourcePath, values, payload)
	if err != nil {
		return resp, err
	}

	results, err := decodeResults(body)
	if err != nil {
		return resp, err
	}

	resp.Document = model.Document{}
	if len(results) > 0 {
		resp.Document = results[0]
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, method, resourcePath string, values url.Values, payload []byte) (*query.Response, []byte, error) {
	u := c.baseURL
	u.Path = path.Join(c.baseURL.Path, resourcePath)

	if len(values) > 0 {
		u.RawQuery = values.Encode()
	}

	var reqBody any
	if payload != nil {
		reqBody = payload
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error while creating request")
	}

	req.Header.Set("Accept", contentTypeJSON)

	if payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		metrics.RemoteRequests.With(prometheus.Labels{"method": method, "code": "error"}).Inc()
		return nil, nil, errors.Wrap(err, "error while performing request")
	}
	defer httpResp.Body.Close()

	metrics.RemoteRequests.With(prometheus.Labels{
		"method": method,
		"code":   strconv.Itoa(httpResp.StatusCode),
	}).Inc()

	resp := &query.Response{TraceID: httpResp.Header.Get(traceIDHeader)}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return resp, nil, errors.Wrap(ErrResponseBody, err.Error())
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		return resp, nil, apiError(httpResp.StatusCode, resp.TraceID, body)
	}

	return resp, body, nil
}

func apiError(status int, traceID string, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	if apiErr.TraceID == "" {
		apiErr.TraceID = traceID
	}

	if status == http.StatusNotFound {
		return errors.Wrap(query.ErrNotFound, apiErr.Error())
	}

	return apiErr
}

// decodeResults returns the documents of a list response, or the document
// itself when the body is a single object.
func decodeResults(body []byte) ([]model.Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	doc := model.Document{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.Wrap(ErrDecodeBody, err.Error())
	}

	raw, ok := doc[resultsField]
	if !ok {
		return []model.Document{doc}, nil
	}

	list, ok := raw.([]any)
	if !ok {
		// "Results": null
		return nil, nil
	}

	results := make([]model.Document, 0, len(list))

	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Wrap(ErrDecodeBody, "unexpected result item")
		}

		results = append(results, m)
	}

	return results, nil
}
