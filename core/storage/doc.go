// Package storage archives reconciliation snapshots in object storage.
//
// It wraps the MinIO Go client, which works against both AWS S3 and self-hosted MinIO.
// The Client interface exposes only the calls the Archive makes so tests can use the
// testify mock in core/storage/mocks.
//
// Archive creates its bucket on first write and stores each document as JSON:
//
//	client, err := storage.NewClient(cfg)
//	archive := storage.NewArchive(client, cfg)
//	err = archive.Put(ctx, "snapshots/2024/01/<id>.json", body)
package storage
