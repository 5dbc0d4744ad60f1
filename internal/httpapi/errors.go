package httpapi

import (
	"encoding/json"
	"net/http"
)

// Every error response uses the same body shape so clients can surface any
// failure the same way:
//
//	{ "errors": [ { "code": 404, "message": "Not Found" } ] }

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Errors []apiError `json:"errors"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Errors: []apiError{{Code: code, Message: msg}}})
}

func badRequest(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "Invalid Request"
	}
	writeError(w, http.StatusBadRequest, msg)
}

func notFound(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "Not Found"
	}
	writeError(w, http.StatusNotFound, msg)
}

func conflict(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "Conflict"
	}
	writeError(w, http.StatusConflict, msg)
}

func serverError(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "Server Error"
	}
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
