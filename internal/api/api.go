package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	signedUploadTimeout = 30 * time.Second
	requestTimeout      = 60 * time.Second
)

// SignedUpload is a one-shot upload target issued by the remote API.
type SignedUpload struct {
	UploadURL string `json:"uploadURL"`
	ImageID   string `json:"cf_image_id"`
}

// PhotoPayload is the body accepted by the metadata endpoint.
type PhotoPayload struct {
	AlbumSlug        string   `json:"album_slug"`
	ImageID          string   `json:"cf_image_id"`
	Alt              *string  `json:"alt"`
	FilenameOriginal string   `json:"filename_original"`
	Tags             []string `json:"tags"`
	Width            int      `json:"width,omitempty"`
	Height           int      `json:"height,omitempty"`
}

// StatusError reports a response with an HTTP status of 400 or above.
type StatusError struct {
	Step       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Step, e.StatusCode, e.Body)
}

type Client struct {
	http    *resty.Client
	baseURL string
	token   string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		http:    resty.New().SetTimeout(requestTimeout),
		baseURL: baseURL,
		token:   token,
	}
}

func (c *Client) authed(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.token).
		SetHeader("Content-Type", "application/json")
}

// RequestSignedUpload asks the API for a direct upload URL for filename.
func (c *Client) RequestSignedUpload(ctx context.Context, filename string) (SignedUpload, error) {
	ctx, cancel := context.WithTimeout(ctx, signedUploadTimeout)
	defer cancel()

	var out SignedUpload
	resp, err := c.authed(ctx).
		SetBody(map[string]string{"filename": filename}).
		SetResult(&out).
		ForceContentType("application/json").
		Post(c.baseURL + "/api/signed-upload")
	if err != nil {
		return SignedUpload{}, fmt.Errorf("signed upload request: %w", err)
	}
	if resp.IsError() {
		return SignedUpload{}, &StatusError{Step: "signed upload endpoint", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if out.UploadURL == "" || out.ImageID == "" {
		return SignedUpload{}, fmt.Errorf("signed upload endpoint returned an incomplete response: %s", resp.String())
	}
	return out, nil
}

// UploadImage posts the file at filePath to a signed upload URL as the
// multipart field "file". The API token is not sent to the signed URL.
func (c *Client) UploadImage(ctx context.Context, uploadURL, filePath string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFile("file", filePath).
		Post(uploadURL)
	if err != nil {
		return fmt.Errorf("image upload: %w", err)
	}
	if resp.IsError() {
		return &StatusError{Step: "image upload", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// RegisterPhoto records metadata for an uploaded image.
func (c *Client) RegisterPhoto(ctx context.Context, payload PhotoPayload) error {
	if payload.Tags == nil {
		payload.Tags = []string{}
	}
	resp, err := c.authed(ctx).
		SetBody(payload).
		Post(c.baseURL + "/api/photos")
	if err != nil {
		return fmt.Errorf("metadata request: %w", err)
	}
	if resp.IsError() {
		return &StatusError{Step: "metadata endpoint", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
