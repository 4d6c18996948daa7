package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

type azblobUploader struct {
	client    *azblob.Client
	container string
}

func newAzblobUploader(_ context.Context, cfg Config) (Uploader, error) {
	if cfg.Account == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: azblob account and container are required")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.Account)

	var (
		client *azblob.Client
		err    error
	)
	if cfg.KeyID != "" && cfg.KeySec != "" {
		cred, credErr := azblob.NewSharedKeyCredential(cfg.KeyID, cfg.KeySec)
		if credErr != nil {
			return nil, fmt.Errorf("archive: azblob shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		var cred azcore.TokenCredential
		client, err = azblob.NewClient(serviceURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: azblob client: %w", err)
	}

	return &azblobUploader{client: client, container: cfg.Bucket}, nil
}

func (u *azblobUploader) Upload(localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = u.client.UploadFile(context.Background(), u.container, key, f, nil)
	if err != nil {
		return fmt.Errorf("archive: azblob upload %s: %w", key, err)
	}
	return nil
}
