package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"inventory_reports/platform/apperr"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/metrics"
	"inventory_reports/platform/resilience"
)

const (
	reportsPath     = "/api/reports/"
	maxErrorBodyLen = 512
)

var errMalformedBody = errors.New("malformed report body")

// statusError is a non-2xx answer from the report service.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("status %d", e.code)
	}
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// Requester fetches rendered reports from the report service.
// Each call issues exactly one GET; nothing is retried.
type Requester struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
	metrics *metrics.Metrics
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
	group   *singleflight.Group
}

// Option configures a Requester.
type Option func(*Requester)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Requester) { r.http = c }
}

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Requester) { r.metrics = m }
}

// WithCircuitBreaker fails fast while the report service keeps failing.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(r *Requester) { r.breaker = cb }
}

// WithRateLimit paces outgoing requests. A limit <= 0 disables pacing.
func WithRateLimit(limit float64, burst int) Option {
	return func(r *Requester) {
		if limit <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// WithInFlightDedupe collapses concurrent requests for the same format and
// mode into one network call. Off by default: independent calls are
// independent requests.
func WithInFlightDedupe() Option {
	return func(r *Requester) { r.group = &singleflight.Group{} }
}

// NewRequester creates a requester for the service at baseURL.
func NewRequester(baseURL string, timeout time.Duration, log *logger.Logger, opts ...Option) *Requester {
	r := &Requester{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BaseURL returns the report service base URL.
func (r *Requester) BaseURL() string {
	return r.baseURL
}

// Request fetches the complete report for format in the given mode.
// It returns the full payload or a ReportGenerationFailed error, never both
// and never a partial payload. Unsupported formats are rejected with
// InvalidFormatSelection before any network I/O.
func (r *Requester) Request(ctx context.Context, format Format, mode Mode) (Payload, error) {
	if !format.Valid() {
		return Payload{}, apperr.InvalidFormat(string(format)).WithOp("reports.request")
	}
	if !mode.Valid() {
		return Payload{}, apperr.Validation(fmt.Sprintf("unsupported report mode %q", mode)).WithOp("reports.request")
	}

	if r.group == nil {
		return r.fetch(ctx, format, mode)
	}

	v, err, shared := r.group.Do(string(mode)+":"+string(format), func() (interface{}, error) {
		return r.fetch(ctx, format, mode)
	})
	if shared {
		r.log.Debug("report request shared with in-flight call", "format", format, "mode", mode)
	}
	if err != nil {
		return Payload{}, err
	}
	return v.(Payload), nil
}

func (r *Requester) fetch(ctx context.Context, format Format, mode Mode) (Payload, error) {
	details := GenerationDetails{Format: format, Mode: mode, ServiceURL: r.baseURL}
	start := time.Now()

	payload, err := r.guarded(ctx, format, mode)
	if err != nil {
		err = r.classify(details, err)
	}

	r.metrics.RecordReportRequest(string(format), string(mode), payload.Size(), time.Since(start), err)
	r.log.WithContext(ctx).ReportEvent(string(format), string(mode), payload.Size(), err)

	if err != nil {
		return Payload{}, err
	}
	return payload, nil
}

func (r *Requester) guarded(ctx context.Context, format Format, mode Mode) (Payload, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return Payload{}, err
		}
	}
	if r.breaker == nil {
		return r.do(ctx, format, mode)
	}
	out, err := r.breaker.Execute(ctx, func() (interface{}, error) {
		return r.do(ctx, format, mode)
	})
	if err != nil {
		return Payload{}, err
	}
	return out.(Payload), nil
}

// do performs the single GET and reads the whole body.
func (r *Requester) do(ctx context.Context, format Format, mode Mode) (Payload, error) {
	q := url.Values{}
	q.Set("format", string(format))
	endpoint := r.baseURL + reportsPath + string(mode) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", format.ContentType()+", */*;q=0.5")

	resp, err := r.http.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return Payload{}, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(errBody))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if len(data) == 0 {
		return Payload{}, fmt.Errorf("%w: empty body", errMalformedBody)
	}
	if resp.ContentLength >= 0 && int64(len(data)) != resp.ContentLength {
		return Payload{}, fmt.Errorf("%w: got %d of %d bytes", errMalformedBody, len(data), resp.ContentLength)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = format.ContentType()
	}

	return Payload{
		Format:      format,
		Mode:        mode,
		ContentType: contentType,
		Data:        data,
		ReceivedAt:  time.Now(),
	}, nil
}

// classify folds every failure into ReportGenerationFailed.
func (r *Requester) classify(details GenerationDetails, err error) error {
	var se *statusError
	switch {
	case errors.As(err, &se):
		details.StatusCode = se.code
		return generationFailed(details, fmt.Sprintf("report service returned %d", se.code), err)
	case errors.Is(err, errMalformedBody):
		return generationFailed(details, "report service returned a malformed body", err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return generationFailed(details, "report service unavailable after repeated failures", err)
	default:
		return generationFailed(details, "report service unreachable", err)
	}
}
