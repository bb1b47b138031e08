package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"
	"strings"

	"agora/internal/config"
	"agora/internal/models"
	"agora/internal/observability"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 5
	DefaultImageMaxDimension    = 1920
	// DefaultImageMaxPixels bounds the decoded source, not the stored result.
	DefaultImageMaxPixels       = 40_000_000
	WebPQuality                 = 80

	webpDataURLPrefix = "data:image/webp;base64,"
)

// ImageService turns client-supplied base64 images into bounded WebP data
// URLs suitable for storing on posts and profiles.
type ImageService struct {
	maxUploadSizeBytes int
	maxDimension       int
	maxPixels          int
}

func NewImageService(cfg *config.Config) *ImageService {
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	maxDimension := DefaultImageMaxDimension
	maxPixels := DefaultImageMaxPixels
	if cfg != nil {
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
		if cfg.ImageMaxDimension > 0 {
			maxDimension = cfg.ImageMaxDimension
		}
		if cfg.ImageMaxPixels > 0 {
			maxPixels = cfg.ImageMaxPixels
		}
	}
	return &ImageService{
		maxUploadSizeBytes: maxUploadSizeMB * 1024 * 1024,
		maxDimension:       maxDimension,
		maxPixels:          maxPixels,
	}
}

// Normalize decodes raw (a data URL or bare base64), checks it is a
// supported image within the size limit, scales it to fit the maximum
// dimension and returns it re-encoded as a WebP data URL.
func (s *ImageService) Normalize(ctx context.Context, raw string) (_ string, err error) {
	_, end := observability.StartServiceSpan(ctx, "ImageService", "Normalize")
	defer end(&err)

	content, err := decodeImagePayload(raw)
	if err != nil {
		return "", err
	}
	if len(content) == 0 {
		return "", models.NewValidationError("Image is empty")
	}
	if len(content) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("Image too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return "", models.NewValidationError("Invalid image type")
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if header.Width <= 0 || header.Height <= 0 ||
		int64(header.Width)*int64(header.Height) > int64(s.maxPixels) {
		return "", models.NewValidationError(fmt.Sprintf("Image dimensions too large (max %d pixels)", s.maxPixels))
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	resized := resizeToFit(decoded, s.maxDimension, s.maxDimension)
	encoded, err := encodeWebP(resized, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return webpDataURLPrefix + base64.StdEncoding.EncodeToString(encoded), nil
}

// NormalizeOptional applies Normalize to a non-empty pointer value. An empty
// string clears the image.
func (s *ImageService) NormalizeOptional(ctx context.Context, raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	out, err := s.Normalize(ctx, *raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeImagePayload(raw string) ([]byte, error) {
	payload := strings.TrimSpace(raw)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, models.NewValidationError("Image must be a base64 data URL")
		}
		if !strings.HasPrefix(payload, "data:image/") {
			return nil, models.NewValidationError("Invalid image type")
		}
		payload = payload[comma+1:]
	}
	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		content, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, models.NewValidationError("Image is not valid base64")
	}
	return content, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if scaleH := float64(maxHeight) / float64(h); scaleH < scale {
		scale = scaleH
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
