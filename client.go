package etsyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// maxErrorBody bounds how much of an error response body is read when
// building a classified error.
const maxErrorBody = 64 * 1024

// Client is the API access layer façade. It composes the request queue,
// cache, backoff engine, rate-limit tracker and token provider into a single
// Request operation. A Client is safe for concurrent use; construct one per
// isolated configuration (there is no package-level instance).
type Client struct {
	cfg        Config
	httpClient *http.Client
	queue      *requestQueue
	cache      Cache
	ttls       *ttlResolver
	retry      *retryer
	retryCond  RetryCondition
	tracker    *rateLimitTracker
	tokens     TokenProvider
	metrics    *MetricsCollector
	logger     Logger
	debug      *DebugConfig

	onRateLimit RateLimitObserver
	onError     ErrorObserver
}

// New constructs a Client from cfg with defaults applied once, then applies
// the options. Configuration problems fail here, not at request time.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		ttls:       newTTLResolver(cfg.CacheTTL, cfg.CacheTTLByEndpoint),
		debug:      DefaultDebugConfig(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.debug == nil {
		c.debug = DefaultDebugConfig()
	}
	if c.cache == nil && cfg.CacheEnabled {
		c.cache = NewMemoryCache(cfg.CacheMaxEntries)
	}
	if c.retryCond == nil {
		c.retryCond = newRetryCondition(cfg.Retry)
	}
	c.retry = newRetryer(cfg.Retry)
	c.tracker = newRateLimitTracker(func(info RateLimitInfo) {
		c.metrics.RecordRateLimit(info)
		c.debugLog(c.debug.LogRateLimit, "rate limit updated", "limit", info.Limit, "remaining", info.Remaining)
		if c.onRateLimit != nil {
			c.onRateLimit(info)
		}
	})
	c.queue = newRequestQueue(cfg.Queue)

	return c, nil
}

// Close stops the request queue. Queued tasks fail with ErrQueueClosed;
// in-flight requests run to completion.
func (c *Client) Close() {
	c.queue.close()
}

// RateLimit returns the latest server-reported quota snapshot.
func (c *Client) RateLimit() RateLimitInfo {
	return c.tracker.snapshot()
}

// QueueStats returns a snapshot of queue state.
func (c *Client) QueueStats() QueueStats {
	return c.queue.stats()
}

// Pause holds back dispatch of queued requests, for example while the host
// re-authorizes. In-flight requests finish normally.
func (c *Client) Pause() {
	c.queue.pause()
}

// Resume releases a previous Pause.
func (c *Client) Resume() {
	c.queue.unpause()
}

// Get performs a GET request. params may be nil.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (*Response, error) {
	return c.Request(ctx, endpoint, &RequestOptions{Method: http.MethodGet, Params: params})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Request(ctx, endpoint, &RequestOptions{Method: http.MethodPost, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Request(ctx, endpoint, &RequestOptions{Method: http.MethodPut, Body: body})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Request(ctx, endpoint, &RequestOptions{Method: http.MethodPatch, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.Request(ctx, endpoint, &RequestOptions{Method: http.MethodDelete})
}

// Request performs one API call with the full reliability stack. GET
// responses may be served from and written to the cache; mutating verbs
// invalidate cached entries under the endpoint's path prefix before the
// network call is issued.
func (c *Client) Request(ctx context.Context, endpoint string, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	var requestID string
	if c.debugEnabled() && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	c.debugLog(c.debug.LogRequests, "starting request", "requestID", requestID, "method", method, "endpoint", endpoint)

	c.metrics.RecordRequestStart(method)
	defer c.metrics.RecordRequestEnd(method)

	key := cacheKey(endpoint, opts.Params)
	cacheable := method == http.MethodGet && c.cache != nil && !opts.SkipCache

	if cacheable {
		if resp, ok := c.cacheRead(ctx, key, requestID); ok {
			c.metrics.RecordCacheHit(endpoint)
			c.metrics.RecordRequest(method, endpoint, resp.StatusCode, time.Since(start))
			return resp, nil
		}
		c.metrics.RecordCacheMiss(endpoint)
	}

	// Invalidate-then-write: clearing before the call means a concurrent
	// reader can never observe a stale entry that outlives the mutation.
	if isMutating(method) && c.cache != nil {
		if err := c.cache.Clear(ctx, endpoint); err != nil {
			c.reportCacheError("invalidate", key, err)
		} else {
			c.debugLog(c.debug.LogCache, "cache invalidated", "requestID", requestID, "prefix", endpoint)
		}
	}

	if c.debugEnabled() && c.debug.LogQueue {
		stats := c.queue.stats()
		c.debugLog(c.debug.LogQueue, "request queued", "requestID", requestID, "queued", stats.Queued, "inFlight", stats.InFlight)
	}
	resp, err := c.queue.enqueue(ctx, func(ctx context.Context) (*Response, error) {
		return c.execute(ctx, method, endpoint, opts, requestID)
	})
	c.metrics.RecordQueueStats(c.queue.stats())

	duration := time.Since(start)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			c.metrics.RecordError(apiErr.Kind, method, endpoint)
			c.metrics.RecordRequest(method, endpoint, apiErr.HTTPStatus, duration)
			if c.onError != nil {
				c.onError(apiErr)
			}
		}
		return nil, err
	}

	c.metrics.RecordRequest(method, endpoint, resp.StatusCode, duration)

	if cacheable {
		c.cacheWrite(ctx, key, endpoint, resp, opts.CacheTTL, requestID)
	}
	return resp, nil
}

// cacheRead is the explicit cache lookup hook. Backend errors degrade to a
// miss.
func (c *Client) cacheRead(ctx context.Context, key, requestID string) (*Response, bool) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.reportCacheError("read", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c.debugLog(c.debug.LogCache, "cache hit", "requestID", requestID, "key", key)
	return &Response{Data: data, StatusCode: http.StatusOK, Header: http.Header{}}, true
}

// cacheWrite is the explicit post-success hook that populates the cache for
// a successful GET. Backend errors skip the write.
func (c *Client) cacheWrite(ctx context.Context, key, endpoint string, resp *Response, ttlOverride time.Duration, requestID string) {
	ttl := ttlOverride
	if ttl <= 0 {
		ttl = c.ttls.resolve(endpoint)
	}
	if err := c.cache.Set(ctx, key, resp.Data, ttl); err != nil {
		c.reportCacheError("write", key, err)
		return
	}
	if mem, ok := c.cache.(*MemoryCache); ok {
		c.metrics.RecordCacheSize("memory", mem.Len())
	}
	c.debugLog(c.debug.LogCache, "response cached", "requestID", requestID, "key", key, "ttl", ttl)
}

// reportCacheError logs a cache backend failure. Cache errors never fail the
// surrounding request.
func (c *Client) reportCacheError(op, key string, err error) {
	c.metrics.RecordError(KindCache, op, key)
	if c.logger != nil {
		c.logger.Warn("cache backend error", "op", op, "key", key, "error", err.Error())
	}
}

// execute runs inside a queue slot: token acquisition, header assembly and
// the backoff-supervised network call.
func (c *Client) execute(ctx context.Context, method, endpoint string, opts *RequestOptions, requestID string) (*Response, error) {
	header := http.Header{}
	header.Set("x-api-key", c.cfg.APIKey)
	header.Set("User-Agent", c.cfg.UserAgent)
	header.Set("Accept", "application/json")

	var bodyBytes []byte
	if opts.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(opts.Body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Description: "encode request body", Method: method, Endpoint: endpoint, RequestID: requestID, Cause: err}
		}
		header.Set("Content-Type", "application/json")
	}

	if !opts.SkipAuth {
		if c.tokens == nil {
			return nil, &Error{Kind: KindToken, Description: "no token provider configured", Method: method, Endpoint: endpoint, RequestID: requestID, Cause: ErrNoTokenProvider}
		}
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			c.debugLog(c.debug.LogAuth, "token acquisition failed", "requestID", requestID, "error", err.Error())
			return nil, &Error{Kind: KindToken, Description: "acquire access token", Method: method, Endpoint: endpoint, RequestID: requestID, Cause: err}
		}
		header.Set("Authorization", "Bearer "+token)
	}

	// Caller headers are applied last so they can override the defaults.
	for name, value := range opts.Headers {
		header.Set(name, value)
	}

	reqURL := c.buildURL(endpoint, opts.Params)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	attempt := 0
	resp, attempts, err := c.retry.do(ctx, c.retryCond, func(ctx context.Context) (*http.Response, error) {
		attempt++
		if attempt > 1 {
			c.metrics.RecordRetry(method, endpoint)
			c.debugLog(c.debug.LogRetries, "retry attempt", "requestID", requestID, "attempt", attempt, "endpoint", endpoint)
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(callCtx, method, reqURL, body)
		if err != nil {
			return nil, err
		}
		req.Header = header.Clone()

		hresp, err := c.httpClient.Do(req)
		if hresp != nil {
			c.tracker.update(hresp.Header)
		}
		return hresp, err
	})

	if err != nil {
		return nil, c.transportError(err, method, endpoint, requestID, attempts)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp, method, endpoint, requestID, attempts)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Description: "read response body", Method: method, Endpoint: endpoint, RequestID: requestID, Attempt: attempts, Cause: err}
	}
	return &Response{Data: data, StatusCode: resp.StatusCode, Header: resp.Header}, nil
}

func (c *Client) buildURL(endpoint string, params map[string]string) string {
	u := c.cfg.BaseURL + endpoint
	if len(params) == 0 {
		return u
	}
	values := url.Values{}
	for name, value := range params {
		values.Set(name, value)
	}
	return u + "?" + values.Encode()
}

// transportError classifies a failure where no usable response was received.
func (c *Client) transportError(err error, method, endpoint, requestID string, attempts int) *Error {
	kind := KindNetwork
	description := "network request failed"

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
		description = "request timed out"
	}
	return &Error{
		Kind:        kind,
		Description: description,
		Method:      method,
		Endpoint:    endpoint,
		RequestID:   requestID,
		Attempt:     attempts,
		Cause:       err,
	}
}

// statusError converts a non-2xx response into a classified error. The body
// is parsed defensively: a non-JSON payload still yields a usable error with
// the HTTP status text as description.
func (c *Client) statusError(resp *http.Response, method, endpoint, requestID string, attempts int) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &Error{
		Kind:        KindAPI,
		HTTPStatus:  resp.StatusCode,
		Description: http.StatusText(resp.StatusCode),
		Method:      method,
		Endpoint:    endpoint,
		RequestID:   requestID,
		Attempt:     attempts,
	}

	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			apiErr.Code = payload.Error
			apiErr.Description = payload.Error
		}
		if payload.ErrorDescription != "" {
			apiErr.Description = payload.ErrorDescription
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.Kind = KindRateLimit
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return apiErr
}

// GetAllPages walks a paginated list endpoint with increasing offset until a
// short page or the reported total count is exhausted, returning the
// concatenated results.
func (c *Client) GetAllPages(ctx context.Context, endpoint string, params map[string]string) ([]json.RawMessage, error) {
	merged := make(map[string]string, len(params)+2)
	for name, value := range params {
		merged[name] = value
	}

	limit := 25
	if v, ok := merged["limit"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	merged["limit"] = strconv.Itoa(limit)

	offset := 0
	if v, ok := merged["offset"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	var all []json.RawMessage
	for {
		merged["offset"] = strconv.Itoa(offset)
		resp, err := c.Request(ctx, endpoint, &RequestOptions{Method: http.MethodGet, Params: merged})
		if err != nil {
			return nil, err
		}

		var page Page
		if err := json.Unmarshal(resp.Data, &page); err != nil {
			return nil, &Error{Kind: KindAPI, Description: "decode paginated response", Method: http.MethodGet, Endpoint: endpoint, Cause: err}
		}

		all = append(all, page.Results...)
		offset += len(page.Results)

		if len(page.Results) < limit {
			return all, nil
		}
		if page.Count > 0 && offset >= page.Count {
			return all, nil
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func (c *Client) debugEnabled() bool {
	return c.debug != nil && c.debug.Enabled
}

func (c *Client) debugLog(concern bool, msg string, kv ...any) {
	if !c.debugEnabled() || !concern || c.logger == nil {
		return
	}
	c.logger.Debug(msg, kv...)
}

