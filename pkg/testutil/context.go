package testutil

import (
	"net/http"

	"esims/pkg/requestcontext"
)

// WithRequestID attaches a request id as the requesttime middleware does
// after chi assigns one.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
