package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates no correlated response arrived within the call's budget.
	ErrTimeout = errors.New("identity resolution timed out")

	// ErrRemote is matched by every *RemoteError.
	ErrRemote = errors.New("identity service reported an error")

	// ErrNoIdentity indicates a response that carried neither an error nor a user.
	ErrNoIdentity = errors.New("identity not found")

	// ErrPublish indicates the request could not be handed to the transport.
	ErrPublish = errors.New("identity request publish failed")

	// ErrMalformedResponse is reported for inbound messages that cannot be parsed.
	// They complete no call.
	ErrMalformedResponse = errors.New("malformed identity response")

	// ErrUnmatchedResponse is reported for inbound messages whose correlation id
	// has no pending call: late, duplicate, or owned by another instance.
	ErrUnmatchedResponse = errors.New("no pending request for correlation id")
)

// RemoteError carries the error the identity service put in its response.
type RemoteError struct {
	Reason  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity service: %s", e.Reason)
	}
	return fmt.Sprintf("identity service: %s: %s", e.Reason, e.Message)
}

// Is makes errors.Is(err, ErrRemote) hold for any RemoteError.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
