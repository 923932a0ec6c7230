package httpx

import (
	"net/http"

	"github.com/aegis-auth/aegis/internal/shared"
)

// RespondError maps application errors to RFC7807 problem responses.
// Untyped errors collapse into a generic internal error so internals never
// leak to the caller.
func RespondError(w http.ResponseWriter, err error) {
	if appErr, ok := shared.AsError(err); ok {
		JSON(w, appErr.Status, ProblemDetail{
			Title:     http.StatusText(appErr.Status),
			Status:    appErr.Status,
			Detail:    appErr.Message,
			ErrorCode: string(appErr.Code),
		})
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
