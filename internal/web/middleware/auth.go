package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/JonMunkholm/ministats/internal/dataset"
	"github.com/JonMunkholm/ministats/internal/logging"
)

// UploadKeyHeader carries the shared upload key.
const UploadKeyHeader = "X-Upload-Key"

// ErrBadUploadKey is passed to the deny func for a missing or wrong key.
var ErrBadUploadKey = dataset.Errorf(dataset.KindUnauthorized, "Missing or invalid upload key.")

// UploadKey rejects requests whose X-Upload-Key header does not equal key.
// An empty key disables the check. Rejections are handed to deny so the
// caller controls the error body.
func UploadKey(key string, deny func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(UploadKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				logging.FromContext(r.Context()).Warn("auth: rejected upload key",
					"path", r.URL.Path,
					"key_present", got != "",
					"ip", ClientIP(r),
				)
				deny(w, r, ErrBadUploadKey)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
