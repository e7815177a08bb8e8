package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/racedraw/racedraw/pkg/core"
)

const (
	uploadPath      = "/api/v1/tournaments/add"
	healthcheckPath = "/healthcheck"
	userAgent       = "racedraw"
)

// Client uploads finished tournaments to a results server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	attempts int
	backoff  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets how many times an upload is tried in total and the base
// delay between tries, which grows linearly.
func WithRetries(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.backoff = backoff
	}
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		attempts:   3,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx answer from the results server.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Op, e.Status)
}

// retryable is true for transport failures and server side errors.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Healthcheck checks if the results server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthcheckPath, nil)
	if err != nil {
		return fmt.Errorf("creating healthcheck request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return c.do(req, "healthcheck")
}

// Upload sends an exported tournament file with its metadata, retrying on
// network and 5xx errors.
func (c *Client) Upload(filePath string, meta core.UploadMetadata) error {
	return c.UploadContext(context.Background(), filePath, meta)
}

func (c *Client) UploadContext(ctx context.Context, filePath string, meta core.UploadMetadata) error {
	body, contentType, err := c.form(filePath, meta)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating upload request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", userAgent)

		err = c.do(req, "upload")
		if err == nil || attempt >= c.attempts || !retryable(err) {
			if err != nil && attempt > 1 {
				return fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
}

func (c *Client) do(req *http.Request, op string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Status: resp.StatusCode}
	}
	return nil
}

// form builds the multipart body once so retries can resend it.
func (c *Client) form(filePath string, meta core.UploadMetadata) ([]byte, string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	name := filepath.Base(filePath)

	fields := [][2]string{
		{"secret", c.apiKey},
		{"filename", name},
		{"tournamentId", meta.TournamentID},
		{"mode", meta.Mode},
		{"participants", strconv.Itoa(meta.Participants)},
		{"races", strconv.Itoa(meta.Races)},
		{"duration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)},
		{"winner", meta.Winner},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", f[0], err)
		}
	}

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to copy file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
