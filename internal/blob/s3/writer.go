package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// multipartThreshold is the payload size at which Upload switches from a
// single PutObject to the concurrent multipart manager. It doubles as the
// part size, which keeps every part above the S3 minimum of 5 MiB.
const multipartThreshold = 8 * 1024 * 1024

// Writer uploads archive objects to the client's bucket.
type Writer struct {
	client *Client
}

// NewWriter creates a Writer over the given client.
func NewWriter(c *Client) *Writer {
	return &Writer{client: c}
}

// Upload stores data under key, picking single-shot or multipart transfer by
// payload size. Archive exports are usually small JSONL files; a busy day of
// spread history can cross the threshold.
func (w *Writer) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.client.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if int64(len(data)) >= multipartThreshold {
		uploader := manager.NewUploader(w.client.s3, func(u *manager.Uploader) {
			u.PartSize = multipartThreshold
		})
		if _, err := uploader.Upload(ctx, input); err != nil {
			return fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
		}
		return nil
	}

	if _, err := w.client.s3.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", key, err)
	}
	return nil
}
