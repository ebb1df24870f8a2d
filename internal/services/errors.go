package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotMember       = errors.New("user is not a member of the group")
	ErrGroupFull       = errors.New("one-to-one groups have two members")
	ErrOwnerRemoval    = errors.New("the group owner cannot be removed")
	ErrPayerPayment    = errors.New("the payer cannot record a payment to themselves")
	ErrNoShare         = errors.New("user has no share in this expense")
	ErrOverpayment     = errors.New("payment exceeds the remaining amount")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrRequired        = errors.New("value is required")
)

// InputError is a rejected request field. The HTTP layer maps it to 422.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }
func (e *InputError) Unwrap() error { return e.Err }

func inputErr(field string, err error) error {
	return &InputError{Field: field, Err: err}
}
