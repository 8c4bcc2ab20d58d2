package content

import (
	"strings"

	"cryptodaily/internal/domain"

	"github.com/tidwall/gjson"
)

const (
	fallbackMemeSource = "fallback"
	dataImageScheme    = "data:image"
	minValidMemeURLLen = 5
)

// IsFallbackMeme reports whether a stored meme is a locally generated
// placeholder that a live meme may overwrite.
func IsFallbackMeme(payload domain.Payload) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}

	doc := gjson.ParseBytes(payload)
	if doc.Get("source").String() == fallbackMemeSource {
		return true
	}

	return strings.HasPrefix(doc.Get("url").String(), dataImageScheme)
}

// IsValidMeme reports whether a candidate carries a usable image URL.
func IsValidMeme(payload domain.Payload) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}

	url := gjson.GetBytes(payload, "url")
	if !url.Exists() || url.Type == gjson.Null {
		return false
	}

	return len(url.String()) > minValidMemeURLLen
}

// HasErrorMarker reports whether a provider answered with an error document
// instead of content.
func HasErrorMarker(payload domain.Payload) bool {
	doc := gjson.ParseBytes(payload)
	return doc.IsObject() && doc.Get("error").Exists()
}
