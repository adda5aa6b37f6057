package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/netgeist/sttrelay/internal/reqid"
)

// Config holds settings for the upstream STT endpoint.
type Config struct {
	Endpoint       string
	Token          string
	Language       string        // default: "lithuanian"
	ResponseFormat string        // default: "json"
	Filename       string        // default: "audio.wav"
	Timeout        time.Duration // default: 300s
}

// UpstreamError is returned when the STT endpoint answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	StatusText string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("stt upstream returned %d %s", e.StatusCode, e.StatusText)
}

// ErrInvalidResponse means a 2xx answer whose body is not JSON.
var ErrInvalidResponse = errors.New("stt upstream returned a non-JSON body")

// Client relays audio to an STT endpoint compatible with the Whisper
// transcription form (file, response_format, language).
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a Client with defaults applied.
func NewClient(cfg Config) *Client {
	if cfg.Language == "" {
		cfg.Language = "lithuanian"
	}
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = "json"
	}
	if cfg.Filename == "" {
		cfg.Filename = "audio.wav"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Configured reports whether both endpoint and token are set.
func (c *Client) Configured() bool {
	return c.cfg.Endpoint != "" && c.cfg.Token != ""
}

// Transcribe posts audio as a multipart upload and returns the upstream JSON
// body unchanged.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (json.RawMessage, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", c.cfg.Filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err = fw.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err = mw.WriteField("response_format", c.cfg.ResponseFormat); err != nil {
		return nil, fmt.Errorf("write response_format: %w", err)
	}
	if err = mw.WriteField("language", c.cfg.Language); err != nil {
		return nil, fmt.Errorf("write language: %w", err)
	}
	if err = mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	reqid.Set(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, StatusText: reasonPhrase(resp)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(respBody) {
		return nil, ErrInvalidResponse
	}
	return json.RawMessage(respBody), nil
}

// reasonPhrase extracts "Not Found" from a "404 Not Found" status line.
func reasonPhrase(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
