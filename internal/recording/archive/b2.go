package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Backblaze/blazer/b2"
)

type b2Uploader struct {
	bucket *b2.Bucket
}

func newB2Uploader(ctx context.Context, cfg Config) (Uploader, error) {
	if cfg.Bucket == "" || cfg.KeyID == "" || cfg.KeySec == "" {
		return nil, fmt.Errorf("archive: b2 bucket, key id and application key are required")
	}

	client, err := b2.NewClient(ctx, cfg.KeyID, cfg.KeySec)
	if err != nil {
		return nil, fmt.Errorf("archive: b2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("archive: b2 bucket %s: %w", cfg.Bucket, err)
	}

	return &b2Uploader{bucket: bucket}, nil
}

func (u *b2Uploader) Upload(localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	ctx := context.Background()
	w := u.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("archive: b2 upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: b2 finalize %s: %w", key, err)
	}
	return nil
}
