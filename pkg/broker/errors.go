package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/oauth2"
)

// ErrorCodeInvalidGrant is the OAuth2 error code a broker reports when an
// authorization code was already used, has expired, or was never valid.
const ErrorCodeInvalidGrant = "invalid_grant"

// Kind classifies a broker failure
type Kind int

const (
	// KindBrokerFault is a broker-side failure: misconfiguration, an internal
	// error, or a response that could not be understood.
	KindBrokerFault Kind = iota
	// KindGrantInvalid means the broker rejected the authorization code.
	KindGrantInvalid
	// KindTransportFault means the broker could not be reached.
	KindTransportFault
)

func (k Kind) String() string {
	switch k {
	case KindGrantInvalid:
		return "grant_invalid"
	case KindTransportFault:
		return "transport_fault"
	default:
		return "broker_fault"
	}
}

// Error is the error type returned by broker clients
type Error struct {
	Kind        Kind
	Code        string // OAuth2 error code reported by the broker, if any
	Description string // Human readable description reported by the broker
	StatusCode  int    // HTTP status of the broker response, 0 if none was received
	Err         error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("broker %s: %s: %s", e.Kind, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("broker %s: %s", e.Kind, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("broker %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("broker %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsGrantInvalid reports whether err is a broker rejection of the authorization code
func IsGrantInvalid(err error) bool {
	var brokerErr *Error
	return errors.As(err, &brokerErr) && brokerErr.Kind == KindGrantInvalid
}

// malformed builds a broker fault for a response that did not have the expected shape
func malformed(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBrokerFault, Err: fmt.Errorf(format, args...)}
}

// classifyExchangeError turns an error from a token request into an *Error
func classifyExchangeError(err error) *Error {
	var brokerErr *Error
	if errors.As(err, &brokerErr) {
		return brokerErr
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code, description := retrieveErr.ErrorCode, retrieveErr.ErrorDescription
		if code == "" || description == "" {
			bodyCode, bodyDescription := parseErrorBody(retrieveErr.Body)
			if code == "" {
				code = bodyCode
			}
			if description == "" {
				description = bodyDescription
			}
		}

		kind := KindBrokerFault
		if code == ErrorCodeInvalidGrant {
			kind = KindGrantInvalid
		}

		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}

		return &Error{
			Kind:        kind,
			Code:        code,
			Description: description,
			StatusCode:  status,
			Err:         err,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransportFault, Err: err}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &Error{Kind: KindTransportFault, Err: err}
	}

	return &Error{Kind: KindBrokerFault, Err: err}
}

// parseErrorBody extracts an error code and description from a JSON error body.
// Some brokers use error_message instead of the standard error_description.
func parseErrorBody(body []byte) (code, description string) {
	if len(body) == 0 {
		return "", ""
	}

	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorMessage     string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}

	description = payload.ErrorDescription
	if description == "" {
		description = payload.ErrorMessage
	}
	return payload.Error, description
}
