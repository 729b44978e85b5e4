// internal/adapters/in/http/middleware/recover.go
package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	claimdom "tokenclaim/internal/domain/claim"
)

// Recover turns a panic into the structured SERVER_ERROR body.
// CORS is applied outside this middleware so the headers survive.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logrus.WithFields(logrus.Fields{
					"component":  "recover",
					"request_id": RequestIDFrom(r.Context()),
					"panic":      rec,
					"stack":      string(debug.Stack()),
				}).Error("panic in handler")

				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(&claimdom.Error{
					Code:    claimdom.CodeServerError,
					Message: "internal server error",
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
