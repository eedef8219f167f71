package domain

import (
	"path/filepath"
	"strings"
)

// extensionTypes maps lowercase file extensions to content categories.
// Unknown extensions fall back to ContentTypeOther.
var extensionTypes = map[string]ContentType{
	".txt":   ContentTypeDocument,
	".md":    ContentTypeDocument,
	".rst":   ContentTypeDocument,
	".pdf":   ContentTypeDocument,
	".docx":  ContentTypeDocument,
	".odt":   ContentTypeDocument,
	".rtf":   ContentTypeDocument,
	".html":  ContentTypeDocument,
	".htm":   ContentTypeDocument,
	".csv":   ContentTypeDocument,
	".log":   ContentTypeDocument,
	".eml":   ContentTypeDocument,
	".tex":   ContentTypeDocument,
	".epub":  ContentTypeDocument,
	".jpg":   ContentTypeImage,
	".jpeg":  ContentTypeImage,
	".png":   ContentTypeImage,
	".gif":   ContentTypeImage,
	".bmp":   ContentTypeImage,
	".webp":  ContentTypeImage,
	".tiff":  ContentTypeImage,
	".heic":  ContentTypeImage,
	".svg":   ContentTypeImage,
	".mp3":   ContentTypeAudio,
	".wav":   ContentTypeAudio,
	".flac":  ContentTypeAudio,
	".m4a":   ContentTypeAudio,
	".ogg":   ContentTypeAudio,
	".aac":   ContentTypeAudio,
	".mp4":   ContentTypeVideo,
	".mkv":   ContentTypeVideo,
	".mov":   ContentTypeVideo,
	".avi":   ContentTypeVideo,
	".webm":  ContentTypeVideo,
	".go":    ContentTypeCode,
	".py":    ContentTypeCode,
	".js":    ContentTypeCode,
	".ts":    ContentTypeCode,
	".java":  ContentTypeCode,
	".c":     ContentTypeCode,
	".h":     ContentTypeCode,
	".cpp":   ContentTypeCode,
	".hpp":   ContentTypeCode,
	".rs":    ContentTypeCode,
	".rb":    ContentTypeCode,
	".sh":    ContentTypeCode,
	".sql":   ContentTypeCode,
	".json":  ContentTypeCode,
	".yaml":  ContentTypeCode,
	".yml":   ContentTypeCode,
	".toml":  ContentTypeCode,
	".xml":   ContentTypeCode,
	".zip":   ContentTypeArchive,
	".tar":   ContentTypeArchive,
	".gz":    ContentTypeArchive,
	".bz2":   ContentTypeArchive,
	".xz":    ContentTypeArchive,
	".7z":    ContentTypeArchive,
	".rar":   ContentTypeArchive,
}

// ClassifyPath returns the content category for a file path based on its
// extension.
func ClassifyPath(path string) ContentType {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	return ContentTypeOther
}

// ParseContentType converts a user-supplied string into a ContentType.
// Returns ContentTypeOther, false for unknown values.
func ParseContentType(s string) (ContentType, bool) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentTypeDocument:
		return ContentTypeDocument, true
	case ContentTypeImage:
		return ContentTypeImage, true
	case ContentTypeAudio:
		return ContentTypeAudio, true
	case ContentTypeVideo:
		return ContentTypeVideo, true
	case ContentTypeCode:
		return ContentTypeCode, true
	case ContentTypeArchive:
		return ContentTypeArchive, true
	case ContentTypeOther:
		return ContentTypeOther, true
	}
	return ContentTypeOther, false
}
