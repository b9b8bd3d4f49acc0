// Package storage provides the blob store capability: write named blobs and
// get back an opaque locator, read blobs back through that locator. It also
// covers the temporary files the video pipeline needs while shelling out to
// ffmpeg. Implementations exist for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Store defines the blob store port. Locators are opaque to callers: the
// local implementation returns filesystem paths, the S3 implementation
// returns https URLs.
type Store interface {
	// Write persists a named blob and returns its locator.
	Write(ctx context.Context, name string, data io.Reader) (locator string, err error)

	// Read opens the blob behind a locator previously returned by Write.
	// The caller is responsible for closing the returned ReadCloser.
	Read(ctx context.Context, locator string) (io.ReadCloser, error)

	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error
}
