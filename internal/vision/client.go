// Package vision asks a vision-capable language model whether a crop is ready
// for harvest.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"harvest_monitor/internal/models"
)

// ErrAnalysis wraps every failure to obtain a model response.
var ErrAnalysis = errors.New("analysis failed")

const (
	defaultBaseURL   = "https://api.openai.com"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 400
	defaultTimeout   = 30 * time.Second
	completionsPath  = "/v1/chat/completions"
	maxResponseBytes = 1 << 20
)

const instruction = `You are an agronomy assistant looking at a photo of a mushroom grow bed.
Answer with plain "KEY: value" lines only, no markdown:
GROWTH_STAGE: one of Spawn Run, Pinning, Fruiting, Mature, Overripe
HARVEST_READY: Yes or No
EXPLANATION: one or two sentences on what in the image supports the judgment
If sensor values are given, add one line per notable value, e.g. MOISTURE: adequate.`

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("vision api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      model,
		maxTokens:  cfg.MaxTokens,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}, nil
}

// Analyze sends the image with the fixed instruction and parses the reply.
// Missing fields in the reply are not an error; an unobtainable reply is.
func (c *Client) Analyze(ctx context.Context, img models.EncodedImage, reading models.Reading) (models.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if len(img.Data) == 0 {
		return models.AnalysisResult{}, fmt.Errorf("%w: image is required", ErrAnalysis)
	}

	raw, err := c.doJSON(ctx, completionsPath, c.buildRequestBody(img, reading))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}
	content, err := extractAssistantContent(raw)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}
	return ParseAnalysis(content), nil
}

func (c *Client) buildRequestBody(img models.EncodedImage, reading models.Reading) map[string]any {
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	return map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": instruction + "\n\n" + sensorContext(reading)},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
				},
			},
		},
		"temperature": 0.2,
		"max_tokens":  c.maxTokens,
	}
}

func sensorContext(r models.Reading) string {
	return fmt.Sprintf(
		"Sensor values: N %.1f%%, P %.1f%%, K %.1f%%, pH %.1f, moisture %.1f%%, humidity %.1f%%, temperature %.1f°C.",
		r.Nitrogen.Value, r.Phosphorus.Value, r.Potassium.Value, r.PH.Value,
		r.Moisture.Average, r.Humidity, r.Temperature,
	)
}

func (c *Client) doJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(respBody) > maxResponseBytes {
		return nil, fmt.Errorf("model response larger than %d bytes", maxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model request failed, status=%d body=%s", resp.StatusCode, truncateText(string(respBody), 240))
	}
	return respBody, nil
}

func extractAssistantContent(raw []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in model response")
	}

	var text string
	switch v := resp.Choices[0].Message.Content.(type) {
	case string:
		text = v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if s, ok := m["text"].(string); ok {
					parts = append(parts, s)
				}
			}
		}
		text = strings.Join(parts, "\n")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty model response")
	}
	return text, nil
}

func truncateText(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
