package vending

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("product not found")
	ErrDuplicateID            = errors.New("product already exists")
	ErrCapacity               = errors.New("capacity exceeded")
	ErrOutOfStock             = errors.New("product out of stock")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidDenomination    = errors.New("invalid denomination")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientReserve    = errors.New("insufficient change funds, please reload currency denominations")
	ErrExactChangeUnavailable = errors.New("unable to return exact change, please reload currency denominations")
)

// ValidationError names the input field that failed validation.
// It matches ErrValidation under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientBalanceError is returned by Register.Purchase when the balance
// does not cover the product price.
type InsufficientBalanceError struct {
	ProductID int
	Price     int
	Balance   int
}

// Shortfall is the amount the customer still has to insert.
func (e *InsufficientBalanceError) Shortfall() int {
	return e.Price - e.Balance
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: please insert %dp more", e.Shortfall())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
