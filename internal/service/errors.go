package service

import "errors"

var (
	// ErrBaseFeeMissing means no base fee survived filtering. A base fee is
	// a configuration invariant, so this is a server-side failure rather
	// than a user error.
	ErrBaseFeeMissing = errors.New("no matching base fee configured")

	// ErrDiscountCodeNotFound means the code does not map to any fee.
	ErrDiscountCodeNotFound = errors.New("discount code not found")

	// ErrFeeExpired covers deactivated and past-expiry fees at redemption
	// or grant time.
	ErrFeeExpired = errors.New("fee is expired")

	// ErrAccountTypeMismatch means the fee is restricted to a different
	// account type than the redeeming account's.
	ErrAccountTypeMismatch = errors.New("fee does not apply to this account type")

	// ErrMaxUsagesReached means the discount code's redemption cap is
	// already exhausted.
	ErrMaxUsagesReached = errors.New("discount code usage limit reached")

	// ErrFeeAlreadyExists is returned when creating a fee whose label and
	// direction are already taken.
	ErrFeeAlreadyExists = errors.New("fee with this label and direction already exists")
)
