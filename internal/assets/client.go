// Package assets uploads attachments to the external asset host.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"

	"github.com/PaulBabatuyi/pairchat/internal/media"
)

// ErrUpload is matched by every *UploadError.
var ErrUpload = errors.New("upload failed")

// UploadError carries the asset host's own message when it sent one.
type UploadError struct {
	Status  int
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	switch {
	case e.Message != "":
		return "upload failed: " + e.Message
	case e.Err != nil:
		return "upload failed: " + e.Err.Error()
	default:
		return fmt.Sprintf("upload failed: status %d", e.Status)
	}
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool { return target == ErrUpload }

// Progress is called with the number of body bytes sent so far.
type Progress func(sent, total int64)

// Client posts multipart uploads to an unsigned upload endpoint and returns
// the stable retrieval URL.
type Client struct {
	URL     string
	Preset  string
	Timeout time.Duration
	HTTP    *http.Client
}

// NewClient returns a Client with its own http.Client.
func NewClient(url, preset string, timeout time.Duration) *Client {
	return &Client{
		URL:     url,
		Preset:  preset,
		Timeout: timeout,
		HTTP:    &http.Client{},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends f and returns its public URL. onProgress may be nil.
func (c *Client) Upload(ctx context.Context, f media.File, onProgress Progress) (string, error) {
	if c.URL == "" {
		return "", &UploadError{Message: "asset host is not configured"}
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	body, contentType, err := c.encode(f)
	if err != nil {
		return "", &UploadError{Err: err}
	}

	total := int64(body.Len())
	var r io.Reader = body
	if onProgress != nil {
		r = &progressReader{r: body, total: total, fn: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, r)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &UploadError{Status: resp.StatusCode, Err: err}
	}

	var out uploadResponse
	jsonErr := json.Unmarshal(raw, &out)

	if resp.StatusCode >= 400 {
		ue := &UploadError{Status: resp.StatusCode}
		if jsonErr == nil && out.Error != nil {
			ue.Message = out.Error.Message
		}
		return "", ue
	}
	if jsonErr != nil {
		return "", &UploadError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", jsonErr)}
	}

	switch {
	case out.SecureURL != "":
		return out.SecureURL, nil
	case out.URL != "":
		return out.URL, nil
	default:
		return "", &UploadError{Status: resp.StatusCode, Message: "response has no url"}
	}
}

func (c *Client) encode(f media.File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if c.Preset != "" {
		if err := w.WriteField("upload_preset", c.Preset); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("public_id", uuid.NewString()); err != nil {
		return nil, "", err
	}

	name := f.Name
	if name == "" {
		name = "attachment"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if f.MIMEType != "" {
		h.Set("Content-Type", f.MIMEType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}
