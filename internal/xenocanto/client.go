package xenocanto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/franz/xc-fetch/internal/util"
	"github.com/franz/xc-fetch/internal/xcid"
)

const (
	// BaseURL is the xeno-canto API v3 base URL
	BaseURL = "https://xeno-canto.org/api/3"

	// UserAgent identifies this application to xeno-canto
	UserAgent = "xc-fetch/1.0.0 (https://github.com/franz/xc-fetch)"

	// DefaultTimeout bounds a single request, body included
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed response is kept for diagnostics
	maxErrorBody = 64 * 1024
)

var (
	// ErrTransport indicates the request never produced an HTTP response
	ErrTransport = errors.New("transport failure")

	// ErrHTTPStatus indicates a non-success HTTP status
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrMalformedResponse indicates a success status with an unusable body
	ErrMalformedResponse = errors.New("malformed response")

	// ErrAPI indicates the provider reported a logical error with HTTP 200
	ErrAPI = errors.New("API error")

	// ErrNotFound indicates the lookup returned no recordings
	ErrNotFound = fmt.Errorf("recording %w", util.ErrNotFound)
)

// StatusError carries a non-success HTTP status and the response body
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("unexpected status code %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// APIError is a logical error reported in the response body
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "xeno-canto API error: " + e.Message
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// Recording is one raw recording document as returned by the API.
// Numbers are kept as json.Number so they re-serialize unchanged.
type Recording map[string]any

// ProgressFunc is called once per download with the announced content
// length (-1 when unknown). A non-nil writer receives a copy of the payload.
type ProgressFunc func(contentLength int64) io.Writer

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Progress   ProgressFunc
}

// Client handles xeno-canto API requests
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	progress   ProgressFunc
}

// NewClient creates a new xeno-canto API client
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}

	c := &Client{
		httpClient: cfg.HTTPClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		progress:   cfg.Progress,
	}

	if c.baseURL == "" {
		c.baseURL = BaseURL
	}
	if c.userAgent == "" {
		c.userAgent = UserAgent
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}

	return c
}

// lookupResponse mirrors the two response shapes:
// { "recordings": [...] } and { "error": ..., "message": ... }
type lookupResponse map[string]json.RawMessage

// Lookup fetches the recording with the given catalogue number.
// The API may answer with several recordings; the first one wins.
func (c *Client) Lookup(ctx context.Context, id xcid.ID, apiKey string) (Recording, error) {
	query := url.Values{}
	query.Set("query", fmt.Sprintf("nr:%d", uint64(id)))
	query.Set("key", apiKey)
	urlStr := fmt.Sprintf("%s/recordings?%s", c.baseURL, query.Encode())

	util.DebugLog("xeno-canto API: looking up %s", id)

	resp, err := c.get(ctx, urlStr, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}

	var result lookupResponse
	if err := json.Unmarshal(body, &result); err != nil || result == nil {
		return nil, fmt.Errorf("%w: response is not a JSON object", ErrMalformedResponse)
	}

	if rawErr, ok := result["error"]; ok {
		return nil, &APIError{Message: apiMessage(rawErr, result["message"])}
	}

	var recordings []json.RawMessage
	rawRecordings, ok := result["recordings"]
	if !ok || json.Unmarshal(rawRecordings, &recordings) != nil || len(recordings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if len(recordings) > 1 {
		util.DebugLog("xeno-canto: query for %s returned %d recordings, using the first", id, len(recordings))
	}

	rec, err := decodeRecording(recordings[0])
	if err != nil {
		return nil, err
	}

	util.DebugLog("xeno-canto: retrieved %s with %d fields", id, len(rec))

	return rec, nil
}

// Download streams the payload at fileURL into w and returns the byte count
func (c *Client) Download(ctx context.Context, fileURL string, w io.Writer) (int64, error) {
	util.DebugLog("xeno-canto: downloading %s", fileURL)

	resp, err := c.get(ctx, fileURL, "*/*")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, statusError(resp)
	}

	dst := w
	if c.progress != nil {
		if pw := c.progress(resp.ContentLength); pw != nil {
			dst = io.MultiWriter(w, pw)
		}
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: download interrupted after %d bytes: %w", ErrTransport, n, err)
	}

	return n, nil
}

func (c *Client) get(ctx context.Context, urlStr, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, redactKey(err))
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// apiMessage renders the error payload. xeno-canto sends a short error code
// in "error" and a sentence in "message".
func apiMessage(rawErr, rawMsg json.RawMessage) string {
	render := func(raw json.RawMessage) string {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		return string(bytes.TrimSpace(raw))
	}

	msg, detail := render(rawErr), render(rawMsg)
	switch {
	case msg != "" && detail != "":
		return msg + ": " + detail
	case msg != "":
		return msg
	case detail != "":
		return detail
	}
	return "unspecified error"
}

func decodeRecording(raw json.RawMessage) (Recording, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var rec Recording
	if err := dec.Decode(&rec); err != nil || rec == nil {
		return nil, fmt.Errorf("%w: first recording is not a JSON object", ErrMalformedResponse)
	}
	return rec, nil
}

// redactKey strips the query string from URL errors so the API key
// never ends up in logs.
func redactKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, perr := url.Parse(urlErr.URL); perr == nil && u.RawQuery != "" {
			u.RawQuery = ""
			return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
		}
	}
	return err
}
