package roster

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
)

// PhotoEncoder turns raw image bytes into the string stored on Student.Photo.
type PhotoEncoder interface {
	EncodePhoto(ctx context.Context, filename string, data []byte) (string, error)
}

// DataURLEncoder inlines photos as base64 data URLs.
type DataURLEncoder struct {
	MaxBytes int
}

func (e DataURLEncoder) EncodePhoto(_ context.Context, _ string, data []byte) (string, error) {
	if e.MaxBytes > 0 && len(data) > e.MaxBytes {
		return "", ErrPhotoTooLarge
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return "", ErrNotImage
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
