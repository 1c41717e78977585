// Package errs provides the error types handlers use to report failures to
// clients.
package errs

import (
	"errors"
	"net/http"

	"github.com/cadcoin/blockchain/business/sys/validate"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is an error whose message is safe to show to the client along
// with the status it maps to.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. This is what will be shown in the
// services' logs.
func (re *Trusted) Error() string {
	return re.Err.Error()
}

// Unwrap exposes the wrapped error so the chain errors can still be matched.
func (re *Trusted) Unwrap() error {
	return re.Err
}

// IsTrusted checks if a Trusted error exists in the chain.
func IsTrusted(err error) bool {
	var re *Trusted
	return errors.As(err, &re)
}

// GetTrusted returns the Trusted error in the chain or nil.
func GetTrusted(err error) *Trusted {
	var re *Trusted
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// ToResponse builds the document and status a client receives for the
// error. Anything not trusted is hidden behind a generic 500.
func ToResponse(err error) (Response, int) {
	switch {
	case validate.IsFieldErrors(err):
		resp := Response{
			Error:  "data validation error",
			Fields: validate.GetFieldErrors(err).Fields(),
		}
		return resp, http.StatusBadRequest

	case IsTrusted(err):
		re := GetTrusted(err)
		return Response{Error: re.Error()}, re.Status
	}

	return Response{Error: http.StatusText(http.StatusInternalServerError)}, http.StatusInternalServerError
}
