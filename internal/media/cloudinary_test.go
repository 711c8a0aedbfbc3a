package media

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sakif/testimonial-board/internal/apperror"
)

// newTestClient points a CloudinaryClient at a local httptest server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *CloudinaryClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewCloudinaryClient("test-cloud", "test-preset")
	c.baseURL = srv.URL
	return c
}

func TestUpload_ReturnsSecureURL(t *testing.T) {
	var gotPath string
	var gotPublicID string
	var gotFileBytes []byte

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("server failed to parse multipart body: %v", err)
		}
		gotPublicID = r.FormValue("public_id")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("server missing file part: %v", err)
		} else {
			gotFileBytes, _ = io.ReadAll(file)
			file.Close()
		}

		json.NewEncoder(w).Encode(map[string]string{
			"secure_url": "https://res.cloudinary.com/test-cloud/video/upload/abc.webm",
			"public_id":  gotPublicID,
		})
	})

	url, err := client.Upload(context.Background(), "key-123", strings.NewReader("fake video bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if url != "https://res.cloudinary.com/test-cloud/video/upload/abc.webm" {
		t.Errorf("Upload() url = %q", url)
	}
	if gotPath != "/v1_1/test-cloud/auto/upload" {
		t.Errorf("request path = %q, want /v1_1/test-cloud/auto/upload", gotPath)
	}
	if gotPublicID != "key-123" {
		t.Errorf("public_id = %q, want %q", gotPublicID, "key-123")
	}
	if string(gotFileBytes) != "fake video bytes" {
		t.Errorf("uploaded bytes = %q", gotFileBytes)
	}
}

func TestUpload_NonOKStatusIsUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusBadRequest)
	})

	_, err := client.Upload(context.Background(), "key", strings.NewReader("bytes"))
	if err == nil {
		t.Fatal("Upload() should fail on a non-2xx response")
	}
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Errorf("Upload() error = %v, want ErrUpstream", err)
	}
}

func TestUpload_MissingSecureURLIsUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"public_id": "key"})
	})

	_, err := client.Upload(context.Background(), "key", strings.NewReader("bytes"))
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Errorf("Upload() error = %v, want ErrUpstream", err)
	}
}

func TestUpload_CancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://example.com/x"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Upload(ctx, "key", strings.NewReader("bytes"))
	if err == nil {
		t.Fatal("Upload() should fail when the context is already cancelled")
	}
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Errorf("Upload() error = %v, want ErrUpstream", err)
	}
}
