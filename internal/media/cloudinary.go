package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sakif/testimonial-board/internal/apperror"
)

// uploadTimeout bounds a single upload call. Media files can be large, but a
// call that hasn't finished after this long is treated as an upstream
// failure and the whole submission aborts — no partial record is written.
const uploadTimeout = 60 * time.Second

// CloudinaryClient implements Uploader against Cloudinary's upload API.
//
// We call the REST endpoint directly with an unsigned upload preset rather
// than pulling in an SDK: the whole interaction is one multipart POST to
//
//	https://api.cloudinary.com/v1_1/<cloud_name>/auto/upload
//
// with the file bytes, the preset name, and our public_id (storage key).
// "auto" lets Cloudinary detect whether the payload is audio or video.
// The response JSON carries secure_url — the durable URL we store as the
// testimonial's content.
type CloudinaryClient struct {
	cloudName    string
	uploadPreset string
	httpClient   *http.Client
	baseURL      string // overridden in tests
}

// NewCloudinaryClient creates a client for the given cloud.
// Both values come from the Cloudinary dashboard; the preset must be
// configured as "unsigned" for this upload style.
func NewCloudinaryClient(cloudName, uploadPreset string) *CloudinaryClient {
	return &CloudinaryClient{
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
		httpClient:   &http.Client{},
		baseURL:      "https://api.cloudinary.com",
	}
}

// uploadResponse is the slice of Cloudinary's response we care about.
type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Upload sends the payload to Cloudinary under the given key and returns the
// secure URL. Every failure mode — building the request, transport errors,
// timeout, non-2xx status, unparseable response — comes back wrapping
// apperror.ErrUpstream so the pipeline maps it to 502.
func (c *CloudinaryClient) Upload(ctx context.Context, key string, payload io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	// Cloudinary expects multipart/form-data with the file under "file".
	// The payload is buffered here; testimonial clips are bounded by the
	// handler's multipart size limit well before this point.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", key)
	if err != nil {
		return "", fmt.Errorf("media: creating form file: %w", err)
	}
	if _, err := io.Copy(part, payload); err != nil {
		return "", fmt.Errorf("media: buffering payload: %w", err)
	}
	if err := mw.WriteField("upload_preset", c.uploadPreset); err != nil {
		return "", fmt.Errorf("media: writing preset field: %w", err)
	}
	if err := mw.WriteField("public_id", key); err != nil {
		return "", fmt.Errorf("media: writing public_id field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("media: closing multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/v1_1/%s/auto/upload", c.baseURL, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("media: building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Covers transport errors and the context deadline firing.
		return "", fmt.Errorf("media: %w: %v", apperror.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("media: %w: upload returned status %d", apperror.ErrUpstream, resp.StatusCode)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("media: %w: decoding upload response: %v", apperror.ErrUpstream, err)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("media: %w: upload response missing secure_url", apperror.ErrUpstream)
	}

	return result.SecureURL, nil
}
