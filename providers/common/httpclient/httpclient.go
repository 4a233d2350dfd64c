// Package httpclient is the shared JSON/multipart HTTP plumbing for provider
// adapters. It normalizes transport failures, timeouts, and non-2xx statuses
// into the fault taxonomy so every adapter reports upstream trouble the same
// way.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
)

// detailSampleLimit bounds how much of an error response body is carried
// into UpstreamError detail.
const detailSampleLimit = 2048

// Client wraps an http.Client with provider identity for error reporting.
type Client struct {
	ProviderID string
	HTTP       *http.Client
}

// New returns a client for the named provider using the default transport.
func New(providerID string) *Client {
	return &Client{ProviderID: providerID, HTTP: &http.Client{}}
}

// Request describes one provider call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    io.Reader
}

// Do executes the request and returns the response body on 2xx. Any other
// outcome is normalized into *fault.UpstreamError.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	if req.Method == "" {
		req.Method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, c.normalizeTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sample, _ := io.ReadAll(io.LimitReader(resp.Body, detailSampleLimit))
		return nil, &fault.UpstreamError{
			Provider: c.ProviderID,
			Status:   resp.StatusCode,
			Detail:   string(bytes.TrimSpace(sample)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fault.UpstreamError{Provider: c.ProviderID, Detail: "read response body", Cause: err}
	}
	return body, nil
}

// DoJSON marshals payload, executes the request, and decodes the response
// into out when out is non-nil.
func (c *Client) DoJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/json"

	raw, err := c.Do(ctx, Request{URL: url, Headers: headers, Body: bytes.NewReader(body)})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &fault.UpstreamError{Provider: c.ProviderID, Detail: "malformed response body", Cause: err}
	}
	return nil
}

// MultipartFile is one file part of a multipart upload.
type MultipartFile struct {
	Field    string
	Filename string
	MimeType string
	Content  []byte
}

// DoMultipart uploads one file plus form fields and decodes the JSON
// response into out when out is non-nil.
func (c *Client) DoMultipart(ctx context.Context, url string, headers map[string]string, file MultipartFile, fields map[string]string, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename)}
	header["Content-Type"] = []string{file.MimeType}
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return fmt.Errorf("write multipart part: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write multipart field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = writer.FormDataContentType()

	raw, err := c.Do(ctx, Request{URL: url, Headers: headers, Body: &buf})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &fault.UpstreamError{Provider: c.ProviderID, Detail: "malformed response body", Cause: err}
	}
	return nil
}

func (c *Client) normalizeTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &fault.UpstreamError{Provider: c.ProviderID, Timeout: true, Detail: "request deadline exceeded", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &fault.UpstreamError{Provider: c.ProviderID, Timeout: true, Detail: "network timeout", Cause: err}
	}
	return &fault.UpstreamError{Provider: c.ProviderID, Detail: "transport failure", Cause: err}
}
