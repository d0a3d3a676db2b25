package backend

import "fmt"

// FetchKind classifies instruction service failures. Callers must not
// retry blindly: EmptyResponse and BackendRejected are backend
// decisions, not transport flakes.
type FetchKind string

const (
	// FetchNetwork is a transport-level failure: the service could not
	// be reached or did not produce a readable response.
	FetchNetwork FetchKind = "NETWORK"

	// FetchBackendRejected is a non-2xx response from the service.
	FetchBackendRejected FetchKind = "BACKEND_REJECTED"

	// FetchEmptyResponse is a 2xx response carrying no instructions.
	FetchEmptyResponse FetchKind = "EMPTY_RESPONSE"
)

// FetchError is the classified failure of one instruction fetch.
type FetchError struct {
	Kind       FetchKind
	Detail     string
	HTTPStatus int // 0 when the request never completed
}

func (e *FetchError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("fetch instructions: %s (status %d): %s", e.Kind, e.HTTPStatus, e.Detail)
	}
	return fmt.Sprintf("fetch instructions: %s: %s", e.Kind, e.Detail)
}
