package http

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clubhub/clubhub-backend/internal/storage"
)

// POST /assets — multipart upload of a submission attachment. Returns
// the key to put in the submission's file_ref, plus a fetch URL rooted
// at the service's public URL when one is configured.
func UploadAssetHandler(blobs storage.BlobStore, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()
		key := fmt.Sprintf("submissions/%s/%s", uuid.NewString(), path.Base(hdr.Filename))
		stored, err := blobs.Put(key, f)
		if err != nil {
			http.Error(w, "store file", http.StatusInternalServerError)
			return
		}
		var url string
		if publicURL != "" {
			url = strings.TrimRight(publicURL, "/") + "/assets/" + stored
		} else if url, err = blobs.SignedURL(stored); err != nil {
			http.Error(w, "sign url", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": stored, "url": url})
	}
}

// GET /assets/* streams a stored attachment.
func DownloadAssetHandler(blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if key == "" {
			http.Error(w, "key required", http.StatusBadRequest)
			return
		}
		rc, err := blobs.Get(key)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	}
}
