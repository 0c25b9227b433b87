package guardstream

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// maxBodyBytes caps how much of a request body the middleware reads for
// evaluation.
const maxBodyBytes = 1 << 20

// Middleware returns an http.Handler that guards each request body as
// INPUT content before passing to the next handler. Blocked requests
// receive a 403 with a JSON body; evaluation failures a 502. Bodyless
// requests pass through unevaluated.
func (c *Client) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		_ = r.Body.Close()
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		verdict, err := c.GuardText(r.Context(), string(body), SourceInput)
		if err != nil {
			http.Error(w, "content evaluation unavailable", http.StatusBadGateway)
			return
		}

		if verdict.Blocked {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"blocked":  true,
				"text":     verdict.Text,
				"findings": verdict.Findings,
			})
			return
		}

		// Hand the next handler the (possibly remediated) body.
		r.Body = io.NopCloser(bytes.NewReader([]byte(verdict.Text)))
		r.ContentLength = int64(len(verdict.Text))
		next.ServeHTTP(w, r)
	})
}
