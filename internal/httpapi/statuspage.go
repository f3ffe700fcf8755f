package httpapi

import (
	_ "embed"
	"net/http"
)

// The page is a thin viewer over GET /hub/status; the JSON contract is the
// real interface, so nothing here is load-bearing.
//
//go:embed statuspage.html
var statusPageHTML []byte

func serveStatusPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(statusPageHTML)
}
