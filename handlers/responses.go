package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Error codes returned in APIErrorDetail.Code.
const (
	codeNotFound            = "not_found"
	codeInvalidLocationCode = "invalid_location_code"
	codeRunNotFound         = "run_not_found"
	codeInternal            = "internal_error"
)

// APIErrorDetail is one entry of an error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse is the body of every non-2xx response.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteAPIError writes a single-error response with the given status.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	writeJSON(w, httpStatus, APIErrorResponse{
		Errors: []APIErrorDetail{{Code: code, Status: strconv.Itoa(httpStatus), Detail: detail}},
	})
}
