package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	fileshare "github.com/SuperSection/fileshare"
	"github.com/SuperSection/fileshare/disposition"
	"github.com/SuperSection/fileshare/httpapi"
	"github.com/SuperSection/fileshare/session"
	"github.com/sirupsen/logrus"
)

// ErrUnexpectedResponse is returned when the server answers with a status the client
// cannot map to a fileshare error.
var ErrUnexpectedResponse = errors.New("unexpected server response")

// Client is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger logrus.FieldLogger
}

// Option customizes a [Client].
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for transfer diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: bad server url %q", fileshare.ErrInvalidInput, baseURL)
	}

	c := &Client{
		base:   u,
		http:   http.DefaultClient,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParseInviteCode validates a user-typed code locally. Invalid input never reaches the
// server.
func ParseInviteCode(raw string) (fileshare.InviteCode, error) {
	return fileshare.ParseInviteCode(strings.TrimSpace(raw))
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// Upload sends size bytes from r under filename and returns the sender's ticket.
// The body is streamed; size is announced ahead of the file part so the server can
// stage it without spooling.
func (c *Client) Upload(ctx context.Context, filename string, size int64, r io.Reader) (*fileshare.Ticket, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size", fileshare.ErrInvalidInput)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, filename, size, r))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/upload"), pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, fmt.Errorf("%w: %v", fileshare.ErrTransferFailed, err)
	}
	defer resp.Body.Close()
	defer pr.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var out httpapi.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode upload response: %v", ErrUnexpectedResponse, err)
	}
	return &fileshare.Ticket{
		Code:       fileshare.InviteCode(out.Code),
		SessionID:  out.SessionID,
		Filename:   out.Filename,
		Size:       out.Size,
		ExpiresAt:  out.ExpiresAt,
		OwnerToken: out.OwnerToken,
	}, nil
}

func writeUpload(mw *multipart.Writer, filename string, size int64, r io.Reader) error {
	if err := mw.WriteField("size", strconv.FormatInt(size, 10)); err != nil {
		return err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return err
	}
	return mw.Close()
}

// Result describes a finished download.
type Result struct {
	Filename string
	Size     int64
}

// Download claims code and writes the file to w. It fails with ErrInvalidInput for a
// malformed code before any request, ErrNotFound when the code is unknown or already
// used, and ErrTransferFailed when the body ends short of its declared length.
func (c *Client) Download(ctx context.Context, code fileshare.InviteCode, w io.Writer) (*Result, error) {
	if !code.Valid() {
		return nil, fmt.Errorf("%w: %v", fileshare.ErrInvalidInput, session.ErrInvalidCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/download/"+code.String()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fileshare.ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fileshare.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	res := &Result{Filename: disposition.FilenameFromHeader(resp.Header)}
	n, err := io.Copy(w, resp.Body)
	res.Size = n
	if err != nil {
		return res, fmt.Errorf("%w: %v", fileshare.ErrTransferFailed, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return res, fmt.Errorf("%w: received %d of %d bytes", fileshare.ErrTransferFailed, n, resp.ContentLength)
	}

	c.logger.WithFields(logrus.Fields{
		"function":    "Download",
		"invite_code": code,
		"filename":    res.Filename,
		"size":        n,
	}).Debug("download finished")
	return res, nil
}

// Status returns the sender's view of the session bound to ownerToken.
func (c *Client) Status(ctx context.Context, ownerToken string) (*fileshare.StatusReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/status"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+ownerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fileshare.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var out httpapi.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", ErrUnexpectedResponse, err)
	}
	state, err := session.ParseState(out.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	report := &fileshare.StatusReport{
		SessionID: out.SessionID,
		Code:      fileshare.InviteCode(out.Code),
		Filename:  out.Filename,
		Size:      out.Size,
		Delivered: out.Delivered,
		State:     state,
		CreatedAt: out.CreatedAt,
		Live:      out.Live,
	}
	if out.ExpiresAt != nil {
		report.ExpiresAt = *out.ExpiresAt
	}
	if out.FinishedAt != nil {
		report.FinishedAt = *out.FinishedAt
	}
	return report, nil
}

// WaitFor polls Status every interval until the session reaches a terminal state or ctx
// ends. A non-positive interval fails with [fileshare.ErrInvalidInput].
func (c *Client) WaitFor(ctx context.Context, ownerToken string, interval time.Duration) (*fileshare.StatusReport, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be > 0", fileshare.ErrInvalidInput)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := c.Status(ctx, ownerToken)
		if err != nil {
			return nil, err
		}
		if report.State.Terminal() {
			return report, nil
		}
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-ticker.C:
		}
	}
}

func decodeError(resp *http.Response) error {
	var body httpapi.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	sentinel := httpapi.ErrorForCode(body.Error, resp.StatusCode)
	if sentinel == nil {
		return fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Status)
	}
	if body.Message != "" {
		return fmt.Errorf("%w: %s", sentinel, body.Message)
	}
	return sentinel
}
