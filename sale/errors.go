package sale

import "errors"

// Every rejection category is a distinct sentinel so callers can tell why an
// operation was refused. All of them leave global state exactly as it was.
var (
	// ErrInactive rejects participant operations outside [begin, endTime).
	ErrInactive = errors.New("sale: not active")

	// ErrNotEnded rejects finalisation attempted before the sale has ended.
	ErrNotEnded = errors.New("sale: not yet ended")

	// ErrHalted rejects participant-facing operations while the admin
	// kill-switch is set.
	ErrHalted = errors.New("sale: halted")

	// ErrBelowDust rejects contributions under the dust limit before any
	// pricing logic runs.
	ErrBelowDust = errors.New("sale: contribution below dust limit")

	// ErrNotAdmin rejects administrator-only operations from other callers.
	ErrNotAdmin = errors.New("sale: caller is not the administrator")

	// ErrNotCertified rejects participants the attestation capability has
	// not approved.
	ErrNotCertified = errors.New("sale: participant not certified")

	// ErrBadSignature rejects buy-ins without a valid acknowledgment
	// signature over the sale statement.
	ErrBadSignature = errors.New("sale: invalid acknowledgment signature")

	// ErrContractAccount rejects participants that are not plain accounts.
	ErrContractAccount = errors.New("sale: participant is not a basic account")

	// ErrNoContribution rejects finalisation for an address with no recorded
	// value, including a second finalisation of the same participant.
	ErrNoContribution = errors.New("sale: no recorded contribution")

	// ErrRefundRequired rejects prepaid buy-ins whose admission would clip:
	// with no payment in flight there is nothing to refund from.
	ErrRefundRequired = errors.New("sale: prepaid contribution would require a refund")

	// ErrTransferFailed wraps an external fund or token transfer refusal.
	// The triggering operation is rolled back in full; retrying is the
	// caller's responsibility.
	ErrTransferFailed = errors.New("sale: external transfer failed")
)
