// Package inference talks to the external image classification service.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cropscan/apiserver/types"
)

const (
	formFieldFile       = "file"
	defaultFilename     = "upload.jpg"
	defaultContentType  = "application/octet-stream"
	defaultTimeout      = 30 * time.Second
	maxResponseBodySize = 10 << 20
)

var (
	// ErrUnavailable means the service could not be reached or the exchange broke off.
	ErrUnavailable = errors.New("inference service unavailable")
	// ErrInvalidResponse means a non-2xx status or an empty body.
	ErrInvalidResponse = errors.New("inference service returned an invalid response")
	// ErrNonJSON means the body was not a single JSON object.
	ErrNonJSON = errors.New("inference service returned non-JSON response")
)

// Result is a successful upstream answer.
type Result struct {
	Status     int
	Prediction types.Prediction
}

// Client posts images to the inference endpoint. One call per Predict, no retries.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client for the given endpoint URL with an explicit timeout.
func New(endpoint string, timeout time.Duration, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("inference url is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid inference url %q", endpoint)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the configured upstream URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Timeout returns the per-call deadline applied to upstream requests.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// Predict forwards the upload as multipart field "file" and parses the JSON object reply.
func (c *Client) Predict(ctx context.Context, upload types.Upload) (Result, error) {
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return Result{}, fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Result{}, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	prediction, err := decodeObject(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNonJSON, err)
	}

	return Result{Status: resp.StatusCode, Prediction: prediction}, nil
}

func encodeUpload(upload types.Upload) (*bytes.Buffer, string, error) {
	filename := strings.TrimSpace(upload.Filename)
	if filename == "" {
		filename = defaultFilename
	}
	partType := partContentType(filename, upload.ContentType, upload.Data)

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(formFieldFile), escapeQuotes(filename)))
	header.Set("Content-Type", partType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

// partContentType keeps a specific declared type. Otherwise it derives one from
// the file extension, then from the content; the upstream only accepts image/*.
func partContentType(filename, declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, defaultContentType) {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); byExt != "" {
		return byExt
	}
	if len(data) > 0 {
		if sniffed := http.DetectContentType(data); sniffed != defaultContentType {
			return sniffed
		}
	}
	return defaultContentType
}

func decodeObject(raw []byte) (types.Prediction, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var prediction types.Prediction
	if err := dec.Decode(&prediction); err != nil {
		return nil, err
	}
	if prediction == nil {
		return nil, errors.New("response is not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return prediction, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
