// Command variantctl provides a CLI utility for offline variant
// maintenance against the media-variants database and storage backend.
//
// It supports the following operations:
//   - regenerate: Rebuild variants for stored images in bulk
//   - clean-orphans: Remove variant files no longer tracked in the database
//
// Usage:
//
//	variantctl <command> [flags]
//
// Commands:
//
//	regenerate     Walk stored images and regenerate their variants.
//	               By default media that already has a complete variant
//	               set is skipped; pass -force to rebuild everything.
//	               Use -preset to restrict work to a single preset, and
//	               -limit/-offset to shard a long run into resumable
//	               batches.
//
//	clean-orphans  Compare the variant files on the storage backend
//	               against the database index and delete files with no
//	               matching record. Pass -dry-run to report without
//	               deleting.
//
// Environment:
//
//	DATABASE_DIR    - Path to database directory (default: /database)
//	MEDIA_DIR       - Path to media root for local storage (default: /media)
//	PUBLIC_URL      - URL prefix used when printing variant URLs
//	PRESETS_FILE    - Optional JSON preset definitions (default: built-in)
//	STORAGE_BACKEND - "local" or "s3" (default: local)
//	S3_ENDPOINT, S3_BUCKET, S3_ACCESS_KEY, S3_SECRET_KEY, S3_USE_SSL
//	                - S3 connection settings when STORAGE_BACKEND=s3
//
// Notes:
//
// Both commands run against the live database, so they can be executed
// while the server is up. Regeneration uses the same per-media lock as
// the HTTP API and will report a conflict rather than double-process.
package main
