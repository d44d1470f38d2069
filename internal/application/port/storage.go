package port

import "context"

// UploadArchive keeps the original uploaded files
type UploadArchive interface {
	// Save stores content under dir and returns the stored relative path
	Save(ctx context.Context, dir, filename string, content []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}
