package httpx

import "net/http"

// Shorthand problem responses used by the API handlers. Domain errors are
// mapped to these by each handler; anything unmapped becomes Internal so
// store failures surface as a generic "try again".

// NotFound sends a 404 problem.
func NotFound(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusNotFound, "Not Found", detail)
}

// Conflict sends a 409 problem.
func Conflict(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusConflict, "Conflict", detail)
}

// BadRequest sends a 400 problem.
func BadRequest(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusBadRequest, "Bad Request", detail)
}

// Forbidden sends a 403 problem.
func Forbidden(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusForbidden, "Forbidden", detail)
}

// UnprocessableEntity sends a 422 problem.
func UnprocessableEntity(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", detail)
}

// Gone sends a 410 problem.
func Gone(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusGone, "Gone", detail)
}

// Internal sends a 500 problem without leaking internals.
func Internal(w http.ResponseWriter) {
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
