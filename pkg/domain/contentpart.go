package domain

import (
	"strings"
)

// ParsedDataURL is a decomposed "data:<mime>;base64,<payload>" URL.
type ParsedDataURL struct {
	MIME    string
	Base64  string
	IsValid bool
}

// ParseDataURL splits a data: URL into its MIME type and base64 payload.
// Remote http(s) URLs and malformed data URLs return IsValid=false so
// callers can fall back to passing the URL through untouched.
func ParseDataURL(url string) ParsedDataURL {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return ParsedDataURL{}
	}
	rest := url[len(prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return ParsedDataURL{}
	}
	meta, payload := rest[:comma], rest[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return ParsedDataURL{}
	}
	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}
	return ParsedDataURL{MIME: mime, Base64: payload, IsValid: true}
}

// IsRemoteURL reports whether url looks like an http(s) reference rather
// than an inline data: URL.
func IsRemoteURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// NormalizeImagePart fills in MIME/Base64 from a bare URL field: data: URLs
// are decomposed into MIME+Base64, remote URLs are left as-is for providers
// that accept fileData/image_url references directly.
func NormalizeImagePart(p ImagePart) ImagePart {
	if p.Base64 != "" || p.URL == "" {
		return p
	}
	if parsed := ParseDataURL(p.URL); parsed.IsValid {
		p.Base64 = parsed.Base64
		if p.MIME == "" {
			p.MIME = parsed.MIME
		}
		p.URL = ""
	}
	return p
}

// MimeFromExtension provides a best-effort MIME type for a filename when a
// provider didn't supply one explicitly, grounded on the common types the
// translation layer needs to distinguish (images mostly).
func MimeFromExtension(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(lower, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(lower, ".mp4"):
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
