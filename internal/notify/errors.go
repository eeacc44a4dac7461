package notify

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind      = errors.New("unknown notification kind")
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// TransientDeliveryError describes one failed delivery attempt. More attempts may follow.
type TransientDeliveryError struct {
	Kind      Kind
	Recipient string
	Attempt   int
	Err       error
}

func (e *TransientDeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: attempt %d: %v", e.Kind, e.Recipient, e.Attempt, e.Err)
}

func (e *TransientDeliveryError) Unwrap() error {
	return e.Err
}

// TerminalDeliveryError is returned once every attempt has failed.
type TerminalDeliveryError struct {
	Kind      Kind
	Recipient string
	Attempts  int
	Err       error
}

func (e *TerminalDeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: giving up after %d attempts: %v", e.Kind, e.Recipient, e.Attempts, e.Err)
}

func (e *TerminalDeliveryError) Unwrap() error {
	return e.Err
}
