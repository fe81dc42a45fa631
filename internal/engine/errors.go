package engine

import (
	"errors"
	"fmt"
)

// Rejection explains why a delivered block was not applied.
//
// Rejections are per-block outcomes, not engine failures: the engine keeps
// processing after every one of them.
type Rejection struct {
	// Code identifies the rejection category.
	Code RejectionCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, when there is one.
	Err error
}

// RejectionCode categorizes rejections.
type RejectionCode string

const (
	// RejectBadSignature indicates the envelope signature does not verify
	// against the block author.
	RejectBadSignature RejectionCode = "bad_signature"

	// RejectCrypto indicates a key or signature could not be used at all.
	RejectCrypto RejectionCode = "crypto"

	// RejectMalformed indicates the action could not be encoded for verification.
	RejectMalformed RejectionCode = "malformed"

	// RejectMissingSubject indicates a server action delivered without a
	// server subject.
	RejectMissingSubject RejectionCode = "missing_subject"

	// RejectNotAuthorized indicates the signer or author is neither the
	// server owner nor an administrator.
	RejectNotAuthorized RejectionCode = "not_authorized"

	// RejectInvalidValue indicates a passport value signature does not
	// verify against its authority.
	RejectInvalidValue RejectionCode = "invalid_value"

	// RejectNotOwner indicates a member action authored by someone other
	// than the targeted passport's owner.
	RejectNotOwner RejectionCode = "not_owner"

	// RejectJournal indicates the journal write failed; state is unchanged.
	RejectJournal RejectionCode = "journal"
)

// Error implements the error interface.
func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Code, r.Message, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func newRejection(code RejectionCode, message string, err error) *Rejection {
	return &Rejection{Code: code, Message: message, Err: err}
}

// IsRejection reports whether err is a Rejection with the given code.
// Uses errors.As to handle wrapped errors.
func IsRejection(err error, code RejectionCode) bool {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Code == code
	}
	return false
}

// ErrStopped is returned by Consume when the engine queue has been closed.
var ErrStopped = errors.New("engine stopped")

// errJournaled marks a block whose fingerprint the journal already holds.
// Only reachable once the in-memory dedup horizon has forgotten it.
var errJournaled = errors.New("block already journaled")
