package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/wardrobe-labs/outfitter/internal/harvest"
	"github.com/wardrobe-labs/outfitter/internal/recommend"
	"github.com/wardrobe-labs/outfitter/internal/session"
)

// Kind classifies the outcome of a pipeline operation
type Kind string

const (
	KindOK              Kind = "ok"
	KindLoginFailure    Kind = "login_failure"
	KindSessionExpired  Kind = "session_expired"
	KindPartialHarvest  Kind = "partial_harvest"
	KindNoDataAvailable Kind = "no_data_available"
	KindModelCallFailed Kind = "model_call_failed"
	KindInvalidModel    Kind = "invalid_model"
	KindStorageFailure  Kind = "storage_failure"
)

// Status is the value result of every pipeline operation
type Status struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (s Status) OK() bool {
	return s.Kind == KindOK
}

func (s Status) String() string {
	return fmt.Sprintf("%s: %s", s.Kind, s.Message)
}

func ok(format string, args ...any) Status {
	return Status{Kind: KindOK, Message: fmt.Sprintf(format, args...)}
}

// emptyHarvestStatus reports a harvest that aborted before collecting anything.
// Nothing is installed, so it is a failure rather than a partial result.
func emptyHarvestStatus(partial *harvest.PartialHarvestError) Status {
	if errors.Is(partial.Cause, harvest.ErrSessionExpired) || errors.Is(partial.Cause, session.ErrNotAuthenticated) {
		return statusFor(partial.Cause)
	}
	return Status{Kind: KindStorageFailure, Message: fmt.Sprintf("Harvest failed at page %d after %d attempts, no records collected: %v", partial.Page, partial.Attempts, partial.Cause)}
}

// statusFor maps a stage error onto the status taxonomy
func statusFor(err error) Status {
	var loginErr *session.LoginError
	var partial *harvest.PartialHarvestError
	var modelErr *recommend.ModelCallError

	switch {
	case err == nil:
		return ok("done")
	case errors.As(err, &loginErr):
		return Status{Kind: KindLoginFailure, Message: fmt.Sprintf("Login failed, please try again: %v", loginErr.Cause)}
	case errors.As(err, &partial):
		return Status{Kind: KindPartialHarvest, Message: fmt.Sprintf("Harvest stopped at page %d after %d attempts, kept %d records: %v", partial.Page, partial.Attempts, partial.Records, partial.Cause)}
	case errors.Is(err, harvest.ErrSessionExpired), errors.Is(err, session.ErrNotAuthenticated):
		return Status{Kind: KindSessionExpired, Message: "Session expired or not logged in, please log in again"}
	case errors.Is(err, recommend.ErrNoDataAvailable), errors.Is(err, os.ErrNotExist):
		return Status{Kind: KindNoDataAvailable, Message: "No purchase data available, harvest purchases first"}
	case errors.As(err, &modelErr):
		return Status{Kind: KindModelCallFailed, Message: modelErr.Error()}
	default:
		return Status{Kind: KindStorageFailure, Message: err.Error()}
	}
}
