package odata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/d365-odata-mcp/internal/connectors/microsoft"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
	"github.com/custodia-labs/d365-odata-mcp/internal/core/ports/driven"
	"github.com/custodia-labs/d365-odata-mcp/internal/logger"
	"github.com/custodia-labs/d365-odata-mcp/internal/metrics"
)

// Ensure Executor implements the interface.
var _ driven.PageFetcher = (*Executor)(nil)

const (
	// DefaultRequestTimeout bounds each HTTP attempt.
	DefaultRequestTimeout = 30 * time.Second

	// maxErrorBodyBytes bounds error bodies kept for diagnostics.
	maxErrorBodyBytes = 1 << 20

	// maxResponseBytes bounds a successful JSON response.
	maxResponseBytes = 64 << 20
)

// Options configures an Executor.
type Options struct {
	// HTTPClient defaults to a client with DefaultRequestTimeout.
	HTTPClient *http.Client
	// RateLimiter is consulted before every attempt when set.
	RateLimiter *microsoft.RateLimiter
	// Retry defaults to DefaultRetryPolicy.
	Retry *RetryPolicy
	// PageSize is sent as odata.maxpagesize when positive.
	PageSize int
	// Sleep waits between retries. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now is used to evaluate Retry-After dates.
	Now func() time.Time
}

// Executor issues authenticated OData GET requests against one endpoint,
// retrying transient failures.
type Executor struct {
	endpoint string
	shape    Shape
	client   *http.Client
	limiter  *microsoft.RateLimiter
	retry    RetryPolicy
	pageSize int
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// NewExecutor creates an executor for the service root endpoint.
func NewExecutor(endpoint string, product domain.Product, opts Options) (*Executor, error) {
	shape, err := ShapeFor(product)
	if err != nil {
		return nil, err
	}
	endpoint, err = microsoft.NormaliseEndpoint(endpoint, product)
	if err != nil {
		return nil, err
	}

	e := &Executor{
		endpoint: endpoint,
		shape:    shape,
		client:   opts.HTTPClient,
		limiter:  opts.RateLimiter,
		retry:    DefaultRetryPolicy(),
		pageSize: opts.PageSize,
		sleep:    opts.Sleep,
		now:      opts.Now,
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if opts.Retry != nil {
		e.retry = *opts.Retry
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Endpoint returns the normalised service root.
func (e *Executor) Endpoint() string {
	return e.endpoint
}

// Product returns the product the executor is shaped for.
func (e *Executor) Product() domain.Product {
	return e.shape.Product()
}

// RetryPolicy returns the policy in use.
func (e *Executor) RetryPolicy() RetryPolicy {
	return e.retry
}

// collectionEnvelope is the OData JSON shape of a collection response.
type collectionEnvelope struct {
	Value    *[]json.RawMessage `json:"value"`
	Count    *int64             `json:"@odata.count"`
	NextLink string             `json:"@odata.nextLink"`
}

// FetchPage fetches one page of spec, or the page at nextLink when set.
func (e *Executor) FetchPage(
	ctx context.Context, spec *domain.QuerySpec, nextLink string, token *domain.Token,
) (*domain.QueryResult, error) {
	if err := e.check(spec); err != nil {
		return nil, err
	}

	target := nextLink
	if target == "" {
		target = e.shape.CollectionURL(e.endpoint, spec)
	} else if !microsoft.SameHost(target, e.endpoint) {
		return nil, &domain.QueryError{
			Kind:    domain.QueryDecode,
			Message: "next link points outside the configured endpoint",
		}
	}

	body, _, err := e.do(ctx, token, request{
		url:    target,
		spec:   spec,
		accept: "application/json",
		limit:  maxResponseBytes,
	})
	if err != nil {
		return nil, err
	}

	var env collectionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		logger.Debug("d365-odata: failed to decode collection response: %v", err)
		return nil, decodeError(err, body)
	}
	if env.Value == nil {
		return nil, decodeError(errors.New(`response has no "value" array`), body)
	}

	result := &domain.QueryResult{
		Records:    *env.Value,
		TotalCount: env.Count,
	}
	if env.NextLink != "" {
		next, err := resolveLink(target, env.NextLink)
		if err != nil || !microsoft.SameHost(next, e.endpoint) {
			return nil, &domain.QueryError{
				Kind:    domain.QueryDecode,
				Message: "server returned a next link outside the configured endpoint",
			}
		}
		result.NextLink = next
	}

	logger.Debug("d365-odata: fetched %d records from %s, more=%t", len(result.Records), spec.Entity, result.NextLink != "")
	return result, nil
}

// FetchEntity reads one record of spec.Entity by key.
func (e *Executor) FetchEntity(
	ctx context.Context, spec *domain.QuerySpec, key string, token *domain.Token,
) ([]byte, error) {
	if err := e.check(spec); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", domain.ErrInvalidInput)
	}

	body, _, err := e.do(ctx, token, request{
		url:    e.shape.EntityURL(e.endpoint, spec, key),
		spec:   spec,
		accept: "application/json",
		limit:  maxResponseBytes,
	})
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, decodeError(errors.New("response is not a JSON object"), body)
	}
	return trimmed, nil
}

// FetchServiceDocument lists the entity sets published at the service root.
func (e *Executor) FetchServiceDocument(ctx context.Context, token *domain.Token) ([]string, error) {
	body, _, err := e.do(ctx, token, request{
		url:    e.endpoint,
		accept: "application/json",
		limit:  maxResponseBytes,
	})
	if err != nil {
		return nil, err
	}

	var doc struct {
		Value *[]struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
			URL  string `json:"url"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, decodeError(err, body)
	}
	if doc.Value == nil {
		return nil, decodeError(errors.New(`service document has no "value" array`), body)
	}

	names := make([]string, 0, len(*doc.Value))
	for _, v := range *doc.Value {
		if v.Kind != "" && v.Kind != "EntitySet" {
			continue
		}
		name := v.Name
		if name == "" {
			name = v.URL
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// FetchMetadata reads the CSDL $metadata document. Documents longer than
// maxBytes are cut short and truncated is set.
func (e *Executor) FetchMetadata(
	ctx context.Context, token *domain.Token, maxBytes int64,
) (doc []byte, truncated bool, err error) {
	if maxBytes <= 0 {
		maxBytes = maxResponseBytes
	}
	return e.do(ctx, token, request{
		url:      e.endpoint + "$metadata",
		accept:   "application/xml",
		limit:    maxBytes,
		truncate: true,
	})
}

func (e *Executor) check(spec *domain.QuerySpec) error {
	if spec == nil {
		return fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	return e.shape.Check(spec)
}

// request describes one logical GET, possibly spanning several attempts.
type request struct {
	url    string
	spec   *domain.QuerySpec
	accept string
	// limit bounds the success body. Exceeding it is a decode error unless
	// truncate is set.
	limit    int64
	truncate bool
}

// attemptFailure is a transient failure eligible for retry.
type attemptFailure struct {
	status     int
	code       string
	message    string
	err        error
	retryAfter time.Duration
	hasAfter   bool
}

// do runs req with the retry policy. Non-transient statuses return a Rejected
// error at once; transient ones are retried until the policy is spent.
func (e *Executor) do(ctx context.Context, token *domain.Token, req request) ([]byte, bool, error) {
	if token == nil {
		return nil, false, errors.New("no access token")
	}
	requestID, ok := RequestIDFrom(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	product := string(e.shape.Product())
	attempts := e.retry.Attempts()

	var last attemptFailure
	for attempt := 1; attempt <= attempts; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, false, fmt.Errorf("wait for rate limiter: %w", err)
			}
		}

		body, truncated, fail, err := e.attempt(ctx, token, req, requestID)
		if err != nil {
			var qe *domain.QueryError
			if errors.As(err, &qe) {
				qe.Attempts = attempt
			}
			return nil, false, err
		}
		if fail == nil {
			metrics.QueryAttemptsTotal.WithLabelValues(product, "success").Inc()
			return body, truncated, nil
		}
		last = *fail

		delay := e.retry.Delay(attempt, fail.retryAfter, fail.hasAfter)
		if microsoft.IsRateLimited(fail.status) && e.limiter != nil && delay > 0 {
			// Hold back every caller sharing the limiter, not just this one.
			e.limiter.RecordRateLimitError(delay)
		}
		if attempt == attempts {
			break
		}

		reason := "network"
		if fail.status != 0 {
			reason = strconv.Itoa(fail.status)
		}
		metrics.QueryRetriesTotal.WithLabelValues(product, reason).Inc()
		logger.Warn("d365-odata: transient failure (%s), attempt %d/%d, retrying in %s",
			describeFailure(fail), attempt, attempts, delay.Round(time.Millisecond))

		if err := e.sleep(ctx, delay); err != nil {
			return nil, false, err
		}
	}

	logger.Error("d365-odata: giving up after %d attempts: %s", attempts, describeFailure(&last))
	return nil, false, &domain.QueryError{
		Kind:       domain.QueryExhausted,
		StatusCode: last.status,
		Code:       last.code,
		Message:    last.message,
		Attempts:   attempts,
		Err:        last.err,
	}
}

// attempt performs a single HTTP round trip. It returns the body on success, a
// failure to retry, or a terminal error.
func (e *Executor) attempt(
	ctx context.Context, token *domain.Token, req request, requestID string,
) ([]byte, bool, *attemptFailure, error) {
	product := string(e.shape.Product())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.url, nil)
	if err != nil {
		return nil, false, nil, fmt.Errorf("create request: %w", err)
	}
	e.applyHeaders(httpReq.Header, token, req, requestID)

	logger.Debug("d365-odata: GET %s (request %s)", req.url, requestID)
	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, nil, ctx.Err()
		}
		metrics.QueryAttemptsTotal.WithLabelValues(product, "network").Inc()
		return nil, false, &attemptFailure{err: err}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, truncated, err := readLimited(resp.Body, req.limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, nil, ctx.Err()
			}
			metrics.QueryAttemptsTotal.WithLabelValues(product, "network").Inc()
			return nil, false, &attemptFailure{status: 0, err: fmt.Errorf("read response: %w", err)}, nil
		}
		if truncated && !req.truncate {
			return nil, false, nil, &domain.QueryError{
				Kind:       domain.QueryDecode,
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("response exceeds %d bytes", req.limit),
			}
		}
		return body, truncated, nil, nil
	}

	body, _, _ := readLimited(resp.Body, maxErrorBodyBytes)
	code, message := microsoft.ParseErrorBody(body)
	statusErr := microsoft.WrapError(resp.StatusCode)

	if !microsoft.IsRetryable(resp.StatusCode) {
		metrics.QueryAttemptsTotal.WithLabelValues(product, "rejected").Inc()
		logger.Debug("d365-odata: request rejected with status %d: %s", resp.StatusCode, message)
		return nil, false, nil, &domain.QueryError{
			Kind:       domain.QueryRejected,
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    message,
			Body:       string(body),
			Err:        statusErr,
		}
	}

	metrics.QueryAttemptsTotal.WithLabelValues(product, "retryable").Inc()
	after, hasAfter := microsoft.RetryAfter(resp.Header.Get("Retry-After"), e.now())
	return nil, false, &attemptFailure{
		status:     resp.StatusCode,
		code:       code,
		message:    message,
		err:        statusErr,
		retryAfter: after,
		hasAfter:   hasAfter,
	}, nil
}

func (e *Executor) applyHeaders(h http.Header, token *domain.Token, req request, requestID string) {
	h.Set("Authorization", token.AuthorizationHeader())
	h.Set("Accept", req.accept)
	h.Set("OData-MaxVersion", "4.0")
	h.Set("OData-Version", "4.0")
	prefer := `odata.include-annotations="*"`
	if e.pageSize > 0 {
		prefer += ",odata.maxpagesize=" + strconv.Itoa(e.pageSize)
	}
	h.Set("Prefer", prefer)
	h.Set(RequestIDHeader, requestID)
	if req.spec != nil {
		e.shape.ApplyHeaders(h, req.spec)
	}
}

// readLimited reads at most limit bytes and reports whether more were available.
func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

func resolveLink(base, link string) (string, error) {
	bu, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	lu, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return bu.ResolveReference(lu).String(), nil
}

func decodeError(err error, body []byte) *domain.QueryError {
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256] + "..."
	}
	return &domain.QueryError{
		Kind:    domain.QueryDecode,
		Message: err.Error(),
		Body:    snippet,
		Err:     err,
	}
}

func describeFailure(f *attemptFailure) string {
	switch {
	case f.status != 0 && f.message != "":
		return fmt.Sprintf("status %d: %s", f.status, f.message)
	case f.status != 0:
		return fmt.Sprintf("status %d", f.status)
	case f.err != nil:
		return f.err.Error()
	default:
		return "unknown error"
	}
}
