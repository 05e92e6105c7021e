// Package storage holds submission attachments. Keys are opaque paths
// of the form submissions/<submissionID>/<filename>.
package storage

import "io"

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	SignedURL(key string) (string, error) // fs returns "file://..." for dev
}
