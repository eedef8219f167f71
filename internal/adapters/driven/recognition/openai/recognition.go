// Package openai provides speech recognition and vision adapters using
// the OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// Ensure the services implement their interfaces.
var (
	_ driven.RecognitionService = (*RecognitionService)(nil)
	_ driven.VisionService      = (*VisionService)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL            = "https://api.openai.com/v1"
	DefaultTranscriptionModel = "whisper-1"
	DefaultVisionModel        = "gpt-4o-mini"
	DefaultTimeout            = 120 * time.Second
)

// Config holds configuration shared by the recognition adapters.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model overrides the default model for the service.
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

func (c *Config) withDefaults(model string) Config {
	cfg := *c
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}

// RecognitionService transcribes speech using the OpenAI audio API.
type RecognitionService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewRecognitionService creates a new speech recognition service.
func NewRecognitionService(cfg Config) (*RecognitionService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	cfg = cfg.withDefaults(DefaultTranscriptionModel)

	return &RecognitionService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// transcriptionResponse is the OpenAI API response format.
type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe converts audio bytes into plain text.
func (s *RecognitionService) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if len(audio) == 0 {
		return "", domain.ErrInvalidInput
	}
	if format == "" {
		format = "wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := writer.WriteField("model", s.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/audio/transcriptions",
		&buf,
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", fmt.Errorf("openai: transcription timed out: %w", err)
		}
		return "", fmt.Errorf("openai: transcription failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var transcription transcriptionResponse
	if err := json.Unmarshal(body, &transcription); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if transcription.Error != nil {
		return "", fmt.Errorf("openai error: %s", transcription.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}

	return strings.TrimSpace(transcription.Text), nil
}

// Ping validates the service is reachable.
func (s *RecognitionService) Ping(ctx context.Context) error {
	return ping(ctx, s.client, s.baseURL, s.apiKey)
}

// Close releases resources.
func (s *RecognitionService) Close() error {
	return nil
}

// VisionService describes images using the OpenAI chat API. The model
// returns tags describing the image; the embedding for vector search is
// produced by embedding those tags with the text embedding model, which
// keeps image and text vectors in one space.
type VisionService struct {
	client   *http.Client
	embedder driven.EmbeddingService
	baseURL  string
	apiKey   string
	model    string
}

// NewVisionService creates a new vision service. The embedder is used to
// project recognised tags into the text embedding space.
func NewVisionService(cfg Config, embedder driven.EmbeddingService) (*VisionService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("openai: embedding service is required")
	}
	cfg = cfg.withDefaults(DefaultVisionModel)

	return &VisionService{
		client:   &http.Client{Timeout: cfg.Timeout},
		embedder: embedder,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
	}, nil
}

// visionRequest is the OpenAI chat completion request format.
type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type visionMessage struct {
	Role    string          `json:"role"`
	Content []visionContent `json:"content"`
}

type visionContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

// visionResponse is the OpenAI chat completion response format.
type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const visionPrompt = "List up to ten short tags describing this image, " +
	"including any readable text. Respond with the tags only, comma separated."

// Embed describes the image and projects the description into the text
// embedding space.
func (s *VisionService) Embed(ctx context.Context, image []byte) (driven.VisionResult, error) {
	if len(image) == 0 {
		return driven.VisionResult{}, domain.ErrInvalidInput
	}

	tags, err := s.describe(ctx, image)
	if err != nil {
		return driven.VisionResult{}, err
	}

	embedding, err := s.embedder.Embed(ctx, strings.Join(tags, " "))
	if err != nil {
		return driven.VisionResult{}, err
	}

	return driven.VisionResult{Embedding: embedding, Tags: tags}, nil
}

func (s *VisionService) describe(ctx context.Context, image []byte) ([]string, error) {
	encoded := base64.StdEncoding.EncodeToString(image)

	reqBody := visionRequest{
		Model:     s.model,
		MaxTokens: 100,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionContent{
				{Type: "text", Text: visionPrompt},
				{Type: "image_url", ImageURL: &visionImageURL{
					URL: "data:image/png;base64," + encoded,
				}},
			},
		}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: vision request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var vision visionResponse
	if err := json.Unmarshal(body, &vision); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if vision.Error != nil {
		return nil, fmt.Errorf("openai error: %s", vision.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(vision.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty vision response")
	}

	return parseTags(vision.Choices[0].Message.Content), nil
}

// parseTags splits a comma separated tag list, dropping empties.
func parseTags(content string) []string {
	parts := strings.Split(content, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(strings.ToLower(part)); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Ping validates the service is reachable.
func (s *VisionService) Ping(ctx context.Context) error {
	return ping(ctx, s.client, s.baseURL, s.apiKey)
}

// Close releases resources.
func (s *VisionService) Close() error {
	return nil
}

// ping checks the /models endpoint, validating the key without inference.
func ping(ctx context.Context, client *http.Client, baseURL, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai: API returned status %d", resp.StatusCode)
	}
	return nil
}
