package textextract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/showdeck/importer/internal/retry"
)

// Result is the extraction service's response for one file.
type Result struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count,omitempty"`
	WordCount int    `json:"word_count"`
	IsLowText bool   `json:"is_low_text"`
	Error     string `json:"error,omitempty"`
}

// Client calls the external file-to-text extraction service. A failed
// extraction yields empty text, never an error that blocks the job; the
// caller routes empty sources into the documents-only fallback.
type Client interface {
	Extract(ctx context.Context, fileName, mimeType string, data []byte) (*Result, error)
}

type httpClient struct {
	baseURL string
	http    *http.Client
	retry   retry.Config
}

// New creates a Client against the given service base URL.
func New(baseURL string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		retry:   retry.Default(),
	}
}

func (c *httpClient) Extract(ctx context.Context, fileName, mimeType string, data []byte) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, eris.Wrap(err, "textextract: create form file")
	}
	if _, err := fw.Write(data); err != nil {
		return nil, eris.Wrap(err, "textextract: write form file")
	}
	if mimeType != "" {
		if err := mw.WriteField("mime_type", mimeType); err != nil {
			return nil, eris.Wrap(err, "textextract: write mime field")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "textextract: close multipart")
	}

	payload := body.Bytes()
	return retry.Do(ctx, c.retry, "textextract.Extract", func(ctx context.Context) (*Result, error) {
		return c.post(ctx, payload, mw.FormDataContentType())
	})
}

func (c *httpClient) post(ctx context.Context, payload []byte, contentType string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "textextract: build request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "textextract: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("textextract: status %d: %s", resp.StatusCode, string(b))
		if retry.IsTransientStatus(resp.StatusCode) {
			return nil, &retry.Transient{Err: err, StatusCode: resp.StatusCode}
		}
		return nil, err
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, eris.Wrap(err, "textextract: decode response")
	}
	return &result, nil
}
