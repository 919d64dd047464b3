package server

import (
	"encoding/json"
	"net/http"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound       = "https://diskwright.dev/problems/not-found"
	ProblemTypeBadRequest     = "https://diskwright.dev/problems/bad-request"
	ProblemTypeInternal       = "https://diskwright.dev/problems/internal-error"
	ProblemTypeNotLoaded      = "https://diskwright.dev/problems/backend-not-loaded"
	ProblemTypeNotImplemented = "https://diskwright.dev/problems/capability-unavailable"
	ProblemTypeToolFailed     = "https://diskwright.dev/problems/tool-failed"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeBadRequest,
		Title:    "Bad Request",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: instance,
	})
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: instance,
	})
}

// BackendNotLoaded writes a 503 problem response.
func BackendNotLoaded(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeNotLoaded,
		Title:    "Backend Not Loaded",
		Status:   http.StatusServiceUnavailable,
		Detail:   detail,
		Instance: instance,
	})
}

// CapabilityUnavailable writes a 501 problem response.
func CapabilityUnavailable(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeNotImplemented,
		Title:    "Capability Unavailable",
		Status:   http.StatusNotImplemented,
		Detail:   detail,
		Instance: instance,
	})
}

// ToolFailed writes a 502 problem response for an external tool failure.
func ToolFailed(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeToolFailed,
		Title:    "Storage Tool Failed",
		Status:   http.StatusBadGateway,
		Detail:   detail,
		Instance: instance,
	})
}
