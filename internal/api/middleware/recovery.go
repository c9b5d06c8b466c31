package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/geoduel/internal/api/apierr"
	"github.com/mcoot/geoduel/internal/middleware"
)

// Recovery turns a panic under /api/v1 into an INTERNAL_ERROR body. The
// socket route sits outside this subrouter and uses the plain handler.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, writeInternalError)
}

func writeInternalError(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}
