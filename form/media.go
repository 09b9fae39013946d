package form

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
)

const octetStream = "application/octet-stream"

// DetectMediaType sniffs data, falling back to image decoders for formats
// net/http does not know and finally to the file extension.
func DetectMediaType(filename string, data []byte) string {
	if len(data) > 0 {
		sniffed := http.DetectContentType(data)
		if sniffed != octetStream && !strings.HasPrefix(sniffed, "text/plain") {
			return stripParams(sniffed)
		}
		if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			return "image/" + format
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return stripParams(byExt)
	}
	return octetStream
}

// MatchesDataType reports whether mediaType fits an audio or image widget.
// Unknown media types are accepted.
func MatchesDataType(dt schema.DataType, mediaType string) bool {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "" || mediaType == octetStream {
		return true
	}
	switch dt {
	case schema.Audio:
		// webm and ogg containers sniff as video or application types
		return strings.HasPrefix(mediaType, "audio/") ||
			mediaType == "video/webm" || mediaType == "application/ogg"
	case schema.Image:
		return strings.HasPrefix(mediaType, "image/")
	}
	return true
}

func stripParams(mediaType string) string {
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	return strings.TrimSpace(mediaType)
}
