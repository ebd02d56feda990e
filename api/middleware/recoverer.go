package middleware

import (
	"fmt"
	"net/http"

	"github.com/ovlasenko/webshop-backend/api/responses"
	pkgerrors "github.com/ovlasenko/webshop-backend/pkg/errors"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
)

// Recoverer converts handler panics into a JSON 500 response so one bad
// request cannot take down the process. http.ErrAbortHandler is re-raised,
// the server uses it to abort the connection on purpose.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":  rec,
						"method": r.Method,
						"path":   r.URL.Path,
					})
					logg.Error(ctx, "panic recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected failure"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
