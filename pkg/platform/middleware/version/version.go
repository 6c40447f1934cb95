// Package version stamps responses with the API version of the matched route.
package version

import (
	"net/http"

	id "arkv/pkg/domain"
)

// Header carries the API version that served the response.
const Header = "API-Version"

// ExtractVersion marks every response of a versioned route group, e.g.
//
//	r.Group(func(v1 chi.Router) {
//	    v1.Use(version.ExtractVersion(id.APIVersionV1))
//	})
func ExtractVersion(v id.APIVersion) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(Header, v.String())
			next.ServeHTTP(w, r)
		})
	}
}
