package localization

import (
	"net/http"
)

// HTTPMiddleware extracts the languages of each request into its context.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := FromHTTPRequest(r)

		ctx := ToContext(r.Context(), l)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}
