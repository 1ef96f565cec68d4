package utils

import (
	"bytes"
	"context"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	ThumbnailWidth        = 400
	maxThumbnailSourceLen = 50 * 1024 * 1024
)

func IsImageContentType(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/bmp", "image/tiff":
		return true
	}
	return false
}

// MakeThumbnail scales an encoded image to ThumbnailWidth keeping aspect ratio.
func MakeThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CreateThumbnail reads objectKey from storage and writes its thumbnail next to it.
func CreateThumbnail(ctx context.Context, objectKey string) (string, error) {
	data, err := ReadObjectFromGCS(ctx, objectKey, maxThumbnailSourceLen)
	if err != nil {
		return "", err
	}
	thumb, err := MakeThumbnail(data)
	if err != nil {
		return "", err
	}
	thumbnailKey := ThumbnailObjectKey(objectKey)
	if err := UploadBytesToGCS(ctx, thumbnailKey, thumb, "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}
