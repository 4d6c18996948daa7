// Package archive uploads completed recordings to remote object
// storage. Only the recording service uses it; audit-log backups are
// not uploaded.
package archive

import "context"

// Uploader pushes a local file to a remote object store under key.
// Implementations are constructed from Config and are safe for
// concurrent use.
type Uploader interface {
	Upload(localPath, key string) error
}

// Config selects and parameterizes one provider. Provider is one of
// "s3", "azblob", "gcs", "b2"; an empty Provider means archival is
// disabled and New returns a nil Uploader.
type Config struct {
	Provider string
	Bucket   string
	Region   string // s3
	Account  string // azblob
	Project  string // gcs
	KeyID    string // b2 application key id
	KeySec   string // s3 secret / b2 application key
}

// New constructs the configured provider, or (nil, nil) if
// cfg.Provider is empty.
func New(ctx context.Context, cfg Config) (Uploader, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "s3":
		return newS3Uploader(ctx, cfg)
	case "azblob":
		return newAzblobUploader(ctx, cfg)
	case "gcs":
		return newGCSUploader(ctx, cfg)
	case "b2":
		return newB2Uploader(ctx, cfg)
	default:
		return nil, errUnknownProvider(cfg.Provider)
	}
}

type errUnknownProvider string

func (e errUnknownProvider) Error() string { return "archive: unknown provider " + string(e) }
