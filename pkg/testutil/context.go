package testutil

import (
	"net/http"

	authmw "spamgate/pkg/platform/middleware/auth"
	"spamgate/pkg/requestcontext"
)

// WithSession marks the request as signed in.
// This simulates what the session middleware would do for a valid cookie.
func WithSession(req *http.Request, userID, username string) *http.Request {
	ctx := authmw.WithClaims(req.Context(), &authmw.Claims{UserID: userID, Username: username})
	return req.WithContext(ctx)
}

// WithClient sets the client IP and User-Agent the metadata middleware
// would have extracted.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), ip, userAgent)
	return req.WithContext(ctx)
}
