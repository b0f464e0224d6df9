// Package media hands message images to an external image host.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrEmptyImage is returned when there is nothing to upload.
var ErrEmptyImage = errors.New("empty image")

// Uploader stores an image (a data URI, base64 payload or remote URL) and
// returns the public URL to persist on the message.
type Uploader interface {
	Upload(ctx context.Context, image string) (string, error)
}

// HTTPUploader posts images to an unsigned-upload endpoint such as
// https://api.cloudinary.com/v1_1/<cloud>/image/upload.
type HTTPUploader struct {
	client *resty.Client
	url    string
	preset string
}

// NewHTTPUploader creates an uploader for endpoint using the given upload preset.
func NewHTTPUploader(endpoint, preset string) *HTTPUploader {
	c := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &HTTPUploader{client: c, url: endpoint, preset: preset}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Upload sends image as the "file" form field and returns the hosted URL.
func (u *HTTPUploader) Upload(ctx context.Context, image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", ErrEmptyImage
	}

	form := map[string]string{"file": image}
	if u.preset != "" {
		form["upload_preset"] = u.preset
	}
	resp, err := u.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(u.url)
	if err != nil {
		return "", fmt.Errorf("image upload request: %w", err)
	}

	var ur uploadResponse
	if err := json.Unmarshal(resp.Body(), &ur); err != nil && resp.IsSuccess() {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if !resp.IsSuccess() {
		if ur.Error != nil && ur.Error.Message != "" {
			return "", fmt.Errorf("image upload status %d: %s", resp.StatusCode(), ur.Error.Message)
		}
		return "", fmt.Errorf("image upload status %d: %s", resp.StatusCode(), resp.String())
	}

	switch {
	case ur.SecureURL != "":
		return ur.SecureURL, nil
	case ur.URL != "":
		return ur.URL, nil
	default:
		return "", fmt.Errorf("image upload response has no url")
	}
}

// Inline keeps the image string as given. Used when no image host is
// configured; the payload is stored on the message verbatim.
type Inline struct{}

func (Inline) Upload(_ context.Context, image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", ErrEmptyImage
	}
	return image, nil
}

// New returns an HTTPUploader when endpoint is set, otherwise Inline.
func New(endpoint, preset string) Uploader {
	if endpoint == "" {
		return Inline{}
	}
	return NewHTTPUploader(endpoint, preset)
}
