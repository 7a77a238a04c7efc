package oauth

import (
	"net/http"
)

// AddAuthorization sets the bearer Authorization header on req. All other
// headers are left as they are.
func AddAuthorization(req *http.Request, accessToken string) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
}
