package token

import "errors"

var (
	ErrNilState          = errors.New("token ledger: state not configured")
	ErrMintNotFound      = errors.New("token ledger: mint not found")
	ErrMintExists        = errors.New("token ledger: mint already exists")
	ErrHoldingNotFound   = errors.New("token ledger: holding account not found")
	ErrHoldingExists     = errors.New("token ledger: holding account already exists")
	ErrMintMismatch      = errors.New("token ledger: holding account has a different mint")
	ErrUnauthorized      = errors.New("token ledger: authority does not own the source account")
	ErrInsufficientFunds = errors.New("token ledger: insufficient funds")
	ErrHoldingNotEmpty   = errors.New("token ledger: holding account balance must be zero to close")
	ErrBadDerivation     = errors.New("token ledger: address does not match its derivation")
)
