package session

import (
	"errors"
	"fmt"
	"strings"

	"askpdf/internal/models"
)

var (
	ErrNoDocument = errors.New("no document has been uploaded")
	ErrNoChunks   = errors.New("document has no text to search")
	ErrNoProvider = errors.New("no embedding provider selected")
	ErrNotFound   = errors.New("session not found")
)

// BuildError reports a failed knowledge base build together with hints for
// the user.
type BuildError struct {
	Provider string
	Err      error
	Hints    []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build knowledge base with %s: %v", e.Provider, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SearchError reports a failed similarity search.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search error: %v", e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Troubleshoot picks the hints shown next to a build error.
func Troubleshoot(err error) []string {
	if err != nil && strings.Contains(err.Error(), models.RemoteProviderKeyword) {
		return models.RemoteTroubleshooting
	}
	return models.FallbackTroubleshooting
}
