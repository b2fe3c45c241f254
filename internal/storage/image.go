package storage

import (
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var ErrNotImage = errors.New("file is not a supported image")

var allowedImages = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// DetectImage sniffs data and returns its MIME type and file extension when it
// is a PNG, JPEG, GIF or WebP image.
func DetectImage(data []byte) (string, string, error) {
	mt := mimetype.Detect(data)
	mime := strings.SplitN(mt.String(), ";", 2)[0]
	if !allowedImages[mime] {
		return "", "", ErrNotImage
	}
	return mime, mt.Extension(), nil
}
