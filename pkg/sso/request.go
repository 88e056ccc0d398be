package sso

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

// maxBodyBytes bounds the initiation request body
const maxBodyBytes = 1 << 20

// Phase is the step of the SSO flow a request belongs to
type Phase int

const (
	// PhaseInitiate starts the flow and redirects to the broker
	PhaseInitiate Phase = iota
	// PhaseCallback completes the flow with the broker's authorization code
	PhaseCallback
)

func (p Phase) String() string {
	if p == PhaseCallback {
		return "callback"
	}
	return "initiate"
}

// Query parameter names read by the strategy
const (
	queryCode         = "code"
	queryConnection   = "connection"
	queryOrganization = "organization"
	queryDomain       = "domain"
	queryEmail        = "email"
)

// Request is the part of an HTTP request the strategy reads
type Request struct {
	HTTP  *http.Request
	Query url.Values
	// Body holds flat request body fields. They are forwarded to the broker
	// on initiation.
	Body map[string]string
}

// Phase classifies the request. A non-empty code parameter marks a callback.
func (r Request) Phase() Phase {
	if r.Query.Get(queryCode) != "" {
		return PhaseCallback
	}
	return PhaseInitiate
}

// Code returns the authorization code of a callback request
func (r Request) Code() string {
	return r.Query.Get(queryCode)
}

// ParseRequest reads the query and the flat body fields of r.
// Form and JSON object bodies are supported; other content types are ignored.
// The query is always populated, even when the body is malformed.
func ParseRequest(r *http.Request) (Request, error) {
	req := Request{
		HTTP:  r,
		Query: r.URL.Query(),
		Body:  map[string]string{},
	}

	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return req, nil
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		body, err := readBody(r)
		if err != nil {
			return req, err
		}
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return req, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		for key := range values {
			req.Body[key] = values.Get(key)
		}

	case "application/json":
		body, err := readBody(r)
		if err != nil {
			return req, err
		}
		if len(body) == 0 {
			return req, nil
		}
		fields, err := flattenJSON(body)
		if err != nil {
			return req, err
		}
		req.Body = fields
	}

	return req, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedBody, maxBodyBytes)
	}
	return body, nil
}

// flattenJSON decodes a JSON object and keeps its scalar members as strings.
// Nested objects, arrays and nulls are dropped.
func flattenJSON(body []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	fields := make(map[string]string, len(raw))
	for key, msg := range raw {
		var value interface{}
		if err := json.Unmarshal(msg, &value); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrMalformedBody, key, err)
		}
		switch v := value.(type) {
		case string:
			fields[key] = v
		case bool:
			fields[key] = strconv.FormatBool(v)
		case float64:
			fields[key] = string(msg)
		}
	}
	return fields, nil
}
