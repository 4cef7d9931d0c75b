package file

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/gabriel-vasile/mimetype"
)

// MD5Sum returns the lowercase hex MD5 checksum of the provided data.
func MD5Sum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong entity tag for a rendered body.
func ETag(body []byte) string {
	return `"` + MD5Sum(body) + `"`
}

// DetectMIME sniffs the MIME type from content, e.g. "application/json".
func DetectMIME(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	return mimetype.Detect(data).String()
}

// IsJSON reports whether data sniffs as JSON or a JSON subtype such as GeoJSON.
func IsJSON(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("application/json") {
			return true
		}
	}
	return false
}
