package escrow

import "errors"

var (
	ErrNilState = errors.New("escrow engine: state not configured")

	// ErrInvalidAccount covers every structural failure: an address that
	// does not match its required derivation, a record or vault that does
	// not exist, or a holding account with the wrong owner or mint.
	ErrInvalidAccount = errors.New("escrow engine: invalid account")

	// ErrUnauthorized is returned when the required party did not sign,
	// or the signer is not the party the record names.
	ErrUnauthorized = errors.New("escrow engine: unauthorized")

	// ErrUnauthorizedVault is returned when replaying the record's
	// derivation with its stored bump does not yield a vault authority.
	ErrUnauthorizedVault = errors.New("escrow engine: vault authority proof failed")

	// ErrInvalidAmount rejects a zero deposit or a zero asking amount at
	// offer creation.
	ErrInvalidAmount = errors.New("escrow engine: amount must be positive")
)
