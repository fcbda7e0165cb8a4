// Package camera fetches still images from the field camera.
package camera

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"harvest_monitor/internal/models"
)

// ErrCapture wraps every capture failure: transport, status and payload.
var ErrCapture = errors.New("capture failed")

const (
	defaultTimeout = 15 * time.Second
	maxImageBytes  = 16 << 20
)

type Config struct {
	URL     string
	Timeout time.Duration
}

type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, errors.New("camera url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{url: u, timeout: cfg.Timeout, httpClient: &http.Client{}}, nil
}

// Capture performs one GET against the camera and returns the decoded image.
func (c *Client) Capture(ctx context.Context) (models.EncodedImage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	req.Header.Set("Accept", "image/*, application/json;q=0.9, text/plain;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("%w: read body: %v", ErrCapture, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.EncodedImage{}, fmt.Errorf("%w: status=%d body=%s", ErrCapture, resp.StatusCode, truncate(string(body), 120))
	}
	if len(body) > maxImageBytes {
		return models.EncodedImage{}, fmt.Errorf("%w: image larger than %d bytes", ErrCapture, maxImageBytes)
	}

	img, err := decodeBody(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	return img, nil
}

// decodeBody accepts raw image bytes or a text/JSON body carrying base64.
func decodeBody(contentType string, body []byte) (models.EncodedImage, error) {
	if len(body) == 0 {
		return models.EncodedImage{}, errors.New("empty body")
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if strings.HasPrefix(mediaType, "image/") || mediaType == "application/octet-stream" || mediaType == "" {
		if sniffed := http.DetectContentType(body); strings.HasPrefix(sniffed, "image/") {
			return models.EncodedImage{MimeType: sniffed, Data: body}, nil
		}
		if strings.HasPrefix(mediaType, "image/") {
			return models.EncodedImage{}, fmt.Errorf("body is not a recognizable %s image", mediaType)
		}
	}

	encoded, hintedType := extractBase64(body)
	if encoded == "" {
		return models.EncodedImage{}, errors.New("no image data in body")
	}
	data, err := decodeBase64(encoded)
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("decode base64 image: %w", err)
	}
	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return models.EncodedImage{}, fmt.Errorf("decoded payload is %s, not an image", sniffed)
	}
	if hintedType == "" {
		hintedType = sniffed
	}
	return models.EncodedImage{MimeType: hintedType, Data: data}, nil
}

var base64Keys = []string{"image", "data", "base64", "photo", "img"}

// extractBase64 returns the base64 text and, for data URLs, the declared type.
func extractBase64(body []byte) (string, string) {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") {
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil {
			return "", ""
		}
		for _, k := range base64Keys {
			if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
				text = strings.TrimSpace(s)
				break
			}
		}
		if strings.HasPrefix(text, "{") {
			return "", ""
		}
	}
	text = strings.Trim(text, `"`)

	if strings.HasPrefix(text, "data:") {
		meta, payload, ok := strings.Cut(text, ",")
		if !ok {
			return "", ""
		}
		mt := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
		return payload, mt
	}
	return text, ""
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
