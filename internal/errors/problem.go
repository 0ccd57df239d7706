package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// Problem type URIs. Relative references are allowed by RFC 7807 and
// keep the documents host-independent.
const (
	TypeValidation    = "/errors/validation"
	TypeNotFound      = "/errors/not-found"
	TypeUnauthorized  = "/errors/unauthorized"
	TypeForbidden     = "/errors/forbidden"
	TypeAccountLocked = "/errors/auth/account-locked"
	TypeConflict      = "/errors/conflict"
	TypeJobNotFound   = "/errors/job/not-found"
	TypeRateLimit     = "/errors/rate-limit"
	TypeTimeout       = "/errors/timeout"
	TypeInternal      = "/errors/internal"
	TypeServiceDown   = "/errors/service-unavailable"
)

// ProblemDetails is an RFC 7807 problem document. Extensions are
// flattened into the top-level JSON object when marshalled.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension member and returns the document for
// chaining.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// Render sets the response status for chi's render stack.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON merges the fixed members with the extensions.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := map[string]interface{}{
		"type":   pd.Type,
		"title":  pd.Title,
		"status": pd.Status,
	}
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	for k, v := range pd.Extensions {
		data[k] = v
	}
	return json.Marshal(data)
}
