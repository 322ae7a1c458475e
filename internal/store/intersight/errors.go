package intersight

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrIntersightConfig = errors.New("intersight client configuration error")
	ErrResponseBody     = errors.New("could not read the response body")
	ErrDecodeBody       = errors.New("could not unmarshal the response body")
	ErrEncodeBody       = errors.New("could not marshal the request body")
	ErrNoMoid           = errors.New("no moid provided")
)

// APIError is the error document Intersight returns for a failed request.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	MessageID  string `json:"messageId"`
	TraceID    string `json:"traceId"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("intersight: status: %d, code: %s, message: %s, traceId: %s", e.StatusCode, e.Code, e.Message, e.TraceID)
}
