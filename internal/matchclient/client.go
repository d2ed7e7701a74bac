// Package matchclient forwards resume uploads to the matching service and
// decodes its ranked results.
package matchclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/JonMunkholm/ResumeMatch/internal/logging"
	"github.com/JonMunkholm/ResumeMatch/internal/match"
	"github.com/JonMunkholm/ResumeMatch/internal/metrics"
)

// Multipart field names expected by the matching service.
const (
	FieldResumes        = "resumes"
	FieldJobDescription = "job_description"
)

const maxResponseBytes = 32 << 20

// ErrMissingJobDescription is returned before any network call when the
// upload has no job description.
var ErrMissingJobDescription = &match.ServerError{
	Status:  http.StatusBadRequest,
	Message: "A job description file is required",
}

var errMissingResults = errors.New("unexpected response shape: missing results")

// errCallerGone marks a failure caused by the caller's context ending, such
// as a browser disconnecting mid-upload. It says nothing about the service.
var errCallerGone = errors.New("caller went away")

// File is one named document in an upload.
type File struct {
	Name    string
	Content io.Reader
}

// Upload is the set of documents for one submission.
type Upload struct {
	Resumes        []File
	JobDescription File
}

// Options configures a Client.
type Options struct {
	// BaseURL is the matching service root, e.g. http://localhost:8000.
	BaseURL string

	// UploadPath is the POST endpoint (default "/upload").
	UploadPath string

	// DownloadPath prefixes resume document links (default "/download").
	DownloadPath string

	// Timeout bounds one upstream call; zero means none.
	Timeout time.Duration

	MaxConcurrent int
	MaxWait       time.Duration

	// BreakerFailures is the consecutive transport failures that open the breaker.
	// Zero disables the breaker.
	BreakerFailures int
	BreakerCooldown time.Duration

	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Client talks to the matching service.
type Client struct {
	base         *url.URL
	uploadPath   string
	downloadPath string
	http         *http.Client
	limiter      *UploadLimiter
	breaker      *gobreaker.CircuitBreaker
	metrics      *metrics.Metrics
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream url %q must be http or https", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		base:         base,
		uploadPath:   withDefault(opts.UploadPath, "/upload"),
		downloadPath: withDefault(opts.DownloadPath, "/download"),
		http:         httpClient,
		limiter:      NewUploadLimiter(opts.MaxConcurrent, opts.MaxWait),
		metrics:      opts.Metrics,
	}

	if opts.BreakerFailures > 0 {
		failures := uint32(opts.BreakerFailures)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "matching-service",
			Timeout: opts.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: breakerSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.FromContext(context.Background()).Warn("circuit breaker state change",
					"breaker", name, "from", from.String(), "to", to.String())
				c.metrics.SetBreakerOpen(to == gobreaker.StateOpen)
			},
		})
	}

	return c, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return "/" + strings.TrimLeft(v, "/")
}

// Limiter exposes the submission limiter for status and shutdown draining.
func (c *Client) Limiter() *UploadLimiter {
	return c.limiter
}

// Submit sends one upload and returns the results in the order received.
//
// Errors are either *match.ServerError (the service answered with a
// message) or *match.TransportError (anything else). Submit never retries.
func (c *Client) Submit(ctx context.Context, up Upload) ([]match.MatchResult, error) {
	if up.JobDescription.Content == nil {
		return nil, ErrMissingJobDescription
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, &match.TransportError{Op: "acquire upload slot", Err: err}
	}
	defer c.limiter.Release()

	start := time.Now()
	results, err := c.execute(func() ([]match.MatchResult, error) {
		results, err := c.submit(ctx, up)
		if err != nil && ctx.Err() != nil && match.IsTransportError(err) {
			err = &match.TransportError{Op: "submit", Err: fmt.Errorf("%w: %w", errCallerGone, err)}
		}
		return results, err
	})
	c.metrics.ObserveUpstream("submit", outcome(err), time.Since(start))

	if err != nil {
		logger := logging.WithFields(ctx, "resumes", len(up.Resumes), "job_description", up.JobDescription.Name)
		if match.IsServerError(err) {
			logger.Warn("matching service rejected upload", "error", err)
		} else {
			logger.Error("matching service call failed", "error", err)
		}
		return nil, err
	}

	c.metrics.ObserveResults(len(results))
	return results, nil
}

// breakerSuccess decides what the breaker counts as a failure. A
// server-reported error means the service is up, and a caller that gave up
// is not the service's fault.
func breakerSuccess(err error) bool {
	switch {
	case err == nil, !match.IsTransportError(err):
		return true
	case errors.Is(err, errCallerGone), errors.Is(err, context.Canceled):
		return true
	default:
		return false
	}
}

// execute runs fn through the circuit breaker when one is configured.
func (c *Client) execute(fn func() ([]match.MatchResult, error)) ([]match.MatchResult, error) {
	if c.breaker == nil {
		return fn()
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &match.TransportError{Op: "submit", Err: err}
	}
	if err != nil {
		return nil, err
	}
	results, _ := v.([]match.MatchResult)
	return results, nil
}

func (c *Client) submit(ctx context.Context, up Upload) ([]match.MatchResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeParts(mw, up))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.uploadPath), pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, &match.TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	logging.FromContext(ctx).Debug("posting upload to matching service",
		"url", req.URL.String(), "resumes", len(up.Resumes))

	resp, err := c.http.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, &match.TransportError{Op: "post upload", Err: err}
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// writeParts streams every file into the multipart body: each resume under
// the repeated "resumes" field, then the job description.
func writeParts(mw *multipart.Writer, up Upload) error {
	for _, f := range up.Resumes {
		if err := writeFile(mw, FieldResumes, f); err != nil {
			return err
		}
	}
	if err := writeFile(mw, FieldJobDescription, up.JobDescription); err != nil {
		return err
	}
	return mw.Close()
}

func writeFile(mw *multipart.Writer, field string, f File) error {
	part, err := mw.CreateFormFile(field, f.Name)
	if err != nil {
		return fmt.Errorf("create part %s: %w", field, err)
	}
	if f.Content == nil {
		return nil
	}
	if _, err := io.Copy(part, f.Content); err != nil {
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return nil
}

type successBody struct {
	Results *[]match.MatchResult `json:"results"`
}

type errorBody struct {
	Error *string `json:"error"`
}

// decodeResponse turns an upstream response into results or a typed error.
func decodeResponse(resp *http.Response) ([]match.MatchResult, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &match.TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var payload successBody
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, &match.TransportError{Op: "decode response", Err: err}
		}
		if payload.Results == nil {
			return nil, &match.TransportError{Op: "decode response", Err: errMissingResults}
		}
		return *payload.Results, nil
	}

	var payload errorBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &match.TransportError{
			Op:  "decode error response",
			Err: fmt.Errorf("status %d: %w", resp.StatusCode, err),
		}
	}
	if payload.Error == nil {
		return nil, &match.TransportError{
			Op:  "decode error response",
			Err: fmt.Errorf("unexpected response shape for status %d", resp.StatusCode),
		}
	}
	return nil, &match.ServerError{Status: resp.StatusCode, Message: *payload.Error}
}

// Download fetches a resume document from the matching service.
// The caller must close the response body. Non-2xx statuses are returned as-is.
func (c *Client) Download(ctx context.Context, name string) (*http.Response, error) {
	if name == "" || strings.Contains(name, "/") || name == "." || name == ".." {
		return nil, &match.ServerError{Status: http.StatusBadRequest, Message: "invalid file name"}
	}

	target := c.endpoint(c.downloadPath, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &match.TransportError{Op: "build request", Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream("download", metrics.OutcomeTransportError, time.Since(start))
		return nil, &match.TransportError{Op: "get document", Err: err}
	}

	oc := metrics.OutcomeOK
	if resp.StatusCode >= 400 {
		oc = metrics.OutcomeServerError
	}
	c.metrics.ObserveUpstream("download", oc, time.Since(start))
	return resp, nil
}

func (c *Client) endpoint(elem ...string) string {
	return c.base.JoinPath(elem...).String()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case match.IsServerError(err):
		return metrics.OutcomeServerError
	default:
		return metrics.OutcomeTransportError
	}
}
