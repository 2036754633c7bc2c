package hosting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/nkasozi/circle-to-search-pc/capture"
)

const (
	imgbbURL = "https://api.imgbb.com/1/upload"

	// Hosted images are transient; they only need to live long enough for
	// the search provider to fetch them.
	expirationSeconds = "900"
)

// ErrNetworkUnavailable marks upload failures caused by connectivity rather
// than by the hosting service rejecting the request.
var ErrNetworkUnavailable = errors.New("network unavailable")

// Client uploads cropped regions to imgbb and returns a retrievable URL.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// New creates an imgbb client. The API key comes from process configuration,
// never from the user settings file.
func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		endpoint:   imgbbURL,
		httpClient: &http.Client{Timeout: 45 * time.Second},
	}
}

// NewWithEndpoint is used by tests to point the client at a local server.
func NewWithEndpoint(apiKey, endpoint string) *Client {
	c := New(apiKey)
	c.endpoint = endpoint
	return c
}

type uploadResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Status int `json:"status_code,omitempty"`
}

// Upload encodes the buffer as PNG and posts it as a base64 multipart form.
// Each call builds a fresh request; nothing from a previous upload leaks
// into a later error path.
func (c *Client) Upload(ctx context.Context, buf *capture.PixelBuffer) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("image hosting API key is not configured")
	}

	pngData, err := buf.EncodePNG()
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("image", base64.StdEncoding.EncodeToString(pngData)); err != nil {
		return "", fmt.Errorf("failed to build upload form: %v", err)
	}
	if err := form.WriteField("expiration", expirationSeconds); err != nil {
		return "", fmt.Errorf("failed to build upload form: %v", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %v", err)
	}

	uploadURL := fmt.Sprintf("%s?key=%s", c.endpoint, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %v", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read upload response: %v", ErrNetworkUnavailable, err)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode upload response (status %d): %v", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("image host rejected upload: %s (status %d)", parsed.Error.Message, resp.StatusCode)
		}
		return "", fmt.Errorf("image host returned status %d", resp.StatusCode)
	}
	if parsed.Data.URL == "" {
		return "", fmt.Errorf("upload response missing image URL")
	}

	log.Printf("Hosting: uploaded %dx%d region", buf.Width, buf.Height)
	return parsed.Data.URL, nil
}
