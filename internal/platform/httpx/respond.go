// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string            `json:"type,omitempty"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	writeProblem(w, ProblemDetail{Title: title, Status: status, Detail: detail})
}

// ValidationProblem reports validator failures as a 400 with one entry per
// offending field. Other errors fall back to their message.
func ValidationProblem(w http.ResponseWriter, err error) {
	problem := ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		problem.Fields = make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			problem.Fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
	} else if err != nil {
		problem.Detail = err.Error()
	}
	writeProblem(w, problem)
}

func writeProblem(w http.ResponseWriter, problem ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// DecodeJSON decodes a bounded JSON request body into target.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(target)
}
