package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultEncoderTimeout = 5 * time.Minute

// EncoderClient — HTTP-клиент encoder-сервиса (транскодирование
// и извлечение кадров выполняются внешним сервисом).
type EncoderClient struct {
	baseURL string
	client  *http.Client
}

// NewEncoderClient создаёт клиент encoder-сервиса.
// Пустой baseURL заменяется значением ENCODER_URL или дефолтом
// для локальной разработки.
func NewEncoderClient(baseURL string) *EncoderClient {
	if baseURL == "" {
		baseURL = os.Getenv("ENCODER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	return &EncoderClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultEncoderTimeout},
	}
}

// EncodeRequest — задание encoder-сервису.
type EncodeRequest struct {
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	VersionID     string `json:"version_id"`
	OutputKey     string `json:"output_key"`
	PresetQuality string `json:"preset_quality,omitempty"`

	// Параметры извлечения кадров (проценты длительности)
	FramesStart int `json:"frames_start,omitempty"`
	FramesEnd   int `json:"frames_end,omitempty"`
	FramesGap   int `json:"frames_gap,omitempty"`
}

// EncodeResponse — ответ encoder-сервиса.
type EncodeResponse struct {
	JobID string   `json:"job_id"`
	Keys  []string `json:"keys,omitempty"`
}

// Transcode запускает транскодирование и дожидается результата.
func (c *EncoderClient) Transcode(ctx context.Context, req EncodeRequest) (*EncodeResponse, error) {
	return c.post(ctx, "/v1/transcode", req)
}

// ExtractFrames запускает извлечение кадров и дожидается результата.
func (c *EncoderClient) ExtractFrames(ctx context.Context, req EncodeRequest) (*EncodeResponse, error) {
	return c.post(ctx, "/v1/frames", req)
}

func (c *EncoderClient) post(ctx context.Context, path string, payload any) (*EncodeResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrEncoderRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoderRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrEncoderRequest, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrEncoderRequest, resp.StatusCode, truncate(string(respBody), 200))
	}

	var result EncodeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrEncoderRequest, err)
	}

	return &result, nil
}

// truncate обрезает строку до максимальной длины.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
