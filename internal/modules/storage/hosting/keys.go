package hosting

import (
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuildObjectKey returns a collision-free key like
// "image/2026/08/31/<uuid>.png". Keys never derive from provider URLs, so two
// generations of the same prompt never overwrite each other.
func BuildObjectKey(mediaKind, contentType string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("%s/%s/%s%s",
		mediaKind,
		now.Format("2006/01/02"),
		uuid.NewString(),
		extensionFor(contentType),
	)
}

func extensionFor(contentType string) string {
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "text/plain":
		return ".txt"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
