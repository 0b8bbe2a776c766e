package llm

import "strings"

// NewInlineImage builds an ImageBlock from a raw base64 payload (with or
// without a data: URL prefix already applied).
func NewInlineImage(mediaType, base64Data string) ImageBlock {
	return ImageBlock{MediaType: mediaType, Data: base64Data}
}

// NewRemoteImage builds an ImageBlock referencing an externally hosted
// image, for providers that support fetching it themselves.
func NewRemoteImage(url string) ImageBlock {
	return ImageBlock{URL: url}
}

// GuessMediaType maps a filename extension to a MIME type for vision
// requests built from an uploaded file, defaulting to JPEG when unknown.
func GuessMediaType(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
