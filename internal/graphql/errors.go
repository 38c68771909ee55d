package graphql

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches every *UnauthorizedError via errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// UnauthorizedError means the session token is missing, expired, malformed,
// or was rejected by the server. The token has already been cleared when
// this is returned.
type UnauthorizedError struct {
	// Code is 401 when the server rejected the token, 0 when the request
	// never left the process.
	Code int
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized"
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// TransportError is a non-success, non-401 HTTP status from the endpoint.
type TransportError struct {
	StatusCode int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("GraphQL error: %d", e.StatusCode)
}

// QueryError carries the messages of a non-empty envelope error list.
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Code mirrors the status the dashboard reports for server-side query
// failures.
func (e *QueryError) Code() int {
	return http.StatusBadRequest
}
