package constants

import "strings"

// IMAGE is the only source format a card upload can have.
const IMAGE = "IMAGE"

// FileTypes holds the allowed source formats for uploaded cards.
var FileTypes = []string{IMAGE}

// AllowedExtensions holds the default allowed file extensions for card uploads.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"webp": {},
	"heic": {},
	"heif": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns IMAGE for allowed extensions and "" otherwise.
func MapExtToFormat(ext string) string {
	if _, ok := AllowedExtensions[NormalizeExt(ext)]; ok {
		return IMAGE
	}
	return ""
}

// IsHEICExt reports whether ext needs converting before tesseract can read it.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}

// LowConfidenceThreshold flags scans whose OCR confidence is below this value for review.
const LowConfidenceThreshold float32 = 0.5
