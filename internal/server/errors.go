package server

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/FranLegon/drive-web/internal/navigator"
)

type httpError struct {
	statusCode int   // HTTP status code.
	err        error // Optional reason for the HTTP error.
}

func (err *httpError) Error() string {
	if err.err != nil {
		return err.err.Error()
	}
	return http.StatusText(err.statusCode)
}

func (err *httpError) Unwrap() error { return err.err }

func (err *httpError) httpStatusCode() int { return err.statusCode }

// errorHTTPStatusCode returns the HTTP error code that most closely describes err.
func errorHTTPStatusCode(err error) int {
	type httpStatusCoder interface {
		httpStatusCode() int
	}
	var coder httpStatusCoder
	if errors.As(err, &coder) {
		return coder.httpStatusCode()
	}

	if errors.Is(err, navigator.ErrTooDeep) || errors.Is(err, navigator.ErrCycle) {
		return http.StatusLoopDetected
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code >= 500:
			return http.StatusBadGateway
		case apiErr.Code >= 400:
			return apiErr.Code
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
