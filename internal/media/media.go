// Package media uploads testimonial audio/video files to an external asset
// host and hands back a durable URL. The rest of the app only knows the
// Uploader interface — the ingestion pipeline doesn't care whether the bytes
// land on Cloudinary, S3, or a test double.
package media

import (
	"context"
	"io"
)

// Uploader pushes a binary payload to the asset host under the given storage
// key and returns the durable retrieval URL.
//
// Keys must be globally unique per attempt: the host treats a repeated key as
// an overwrite, so a retry (if a caller ever adds one) must generate a fresh
// key rather than reuse the failed attempt's. Callers generate keys with
// xid, which has a random component and doesn't collide under concurrent
// submissions the way a bare timestamp would.
//
// Upload is at-most-once from the caller's point of view: any transport,
// quota, or validation failure from the host is returned as an error and the
// caller aborts — there is no retry inside the adapter.
type Uploader interface {
	Upload(ctx context.Context, key string, payload io.Reader) (string, error)
}
