package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ignite/audience-segments/internal/pkg/httputil"
)

// SellerHeader carries the authenticated seller id, set by the auth proxy in
// front of this service.
const SellerHeader = "X-Seller-ID"

type sellerKey struct{}

// requireSeller rejects requests without a seller identity.
func requireSeller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sellerID := strings.TrimSpace(r.Header.Get(SellerHeader))
		if sellerID == "" {
			httputil.Error(w, http.StatusUnauthorized, "seller identity required")
			return
		}
		ctx := context.WithValue(r.Context(), sellerKey{}, sellerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sellerFrom(ctx context.Context) string {
	s, _ := ctx.Value(sellerKey{}).(string)
	return s
}
