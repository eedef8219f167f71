package extractors

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/logger"
)

// Ensure Media implements the interface.
var _ driven.Extractor = (*Media)(nil)

// Media handles image, audio and video files. Images go through the
// vision service, audio through speech recognition. When a service is
// missing or fails, the file is still indexed by its filename and file
// attributes, marked degraded, so it remains findable by name.
type Media struct {
	vision      driven.VisionService
	recognition driven.RecognitionService
}

// NewMedia creates a media extractor. Both services may be nil.
func NewMedia(vision driven.VisionService, recognition driven.RecognitionService) *Media {
	return &Media{vision: vision, recognition: recognition}
}

// Name returns the extractor name.
func (e *Media) Name() string { return "media" }

// ContentTypes returns the categories this extractor handles.
func (e *Media) ContentTypes() []domain.ContentType {
	return []domain.ContentType{
		domain.ContentTypeImage,
		domain.ContentTypeAudio,
		domain.ContentTypeVideo,
	}
}

// Extensions returns nil; this is the category fallback for media.
func (e *Media) Extensions() []string { return nil }

// Extract produces text for a media file.
func (e *Media) Extract(ctx context.Context, path string) (*driven.ExtractResult, error) {
	switch domain.ClassifyPath(path) {
	case domain.ContentTypeImage:
		return e.extractImage(ctx, path)
	case domain.ContentTypeAudio:
		return e.extractAudio(ctx, path)
	default:
		// Video frame sampling is not implemented; index by name only.
		return degradedResult(path, "video"), nil
	}
}

func (e *Media) extractImage(ctx context.Context, path string) (*driven.ExtractResult, error) {
	if e.vision == nil {
		return degradedResult(path, "image"), nil
	}

	content, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}

	result, err := e.vision.Embed(ctx, content)
	if err != nil {
		logger.Warn("extractors: vision failed for %s: %v", path, err)
		return degradedResult(path, "image"), nil
	}

	text := filenameWords(path)
	if len(result.Tags) > 0 {
		text = text + "\n" + strings.Join(result.Tags, " ")
	}

	return &driven.ExtractResult{
		Text: text,
		Metadata: map[string]any{
			"format": "image",
			"tags":   result.Tags,
		},
		Embedding: result.Embedding,
	}, nil
}

func (e *Media) extractAudio(ctx context.Context, path string) (*driven.ExtractResult, error) {
	if e.recognition == nil {
		return degradedResult(path, "audio"), nil
	}

	content, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	transcript, err := e.recognition.Transcribe(ctx, content, format)
	if err != nil {
		logger.Warn("extractors: transcription failed for %s: %v", path, err)
		return degradedResult(path, "audio"), nil
	}

	text := filenameWords(path)
	if transcript != "" {
		text = text + "\n" + transcript
	}

	return &driven.ExtractResult{
		Text: text,
		Metadata: map[string]any{
			"format":     "audio",
			"transcript": transcript != "",
		},
	}, nil
}

// degradedResult indexes a media file by name and attributes only.
func degradedResult(path, format string) *driven.ExtractResult {
	metadata := map[string]any{"format": format}
	if info, err := os.Stat(path); err == nil {
		metadata["bytes"] = info.Size()
	}
	return &driven.ExtractResult{
		Text:     filenameWords(path),
		Metadata: metadata,
		Degraded: true,
	}
}

// filenameWords turns "holiday_photos-2024.jpg" into "holiday photos 2024".
func filenameWords(path string) string {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, ".", " ")
	return strings.Join(strings.Fields(name), " ")
}
