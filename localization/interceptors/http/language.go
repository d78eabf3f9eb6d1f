package http

import (
	"net/http"

	"github.com/pitabwire/bucketbackend/localization"
)

// LanguageHTTPMiddleware stores the languages a request asks for in its context,
// the lang query parameter first and then the Accept-Language header.
func LanguageHTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		languages := localization.ExtractLanguageFromHTTPRequest(r)
		if len(languages) > 0 {
			r = r.WithContext(localization.ToContext(r.Context(), languages))
		}

		next.ServeHTTP(w, r)
	})
}
