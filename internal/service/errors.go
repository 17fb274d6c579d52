package service

import "errors"

var (
	ErrEmptyCart              = errors.New("cart is empty, nothing to checkout")
	ErrEmptyProofReference    = errors.New("payment reference is required")
	ErrVerificationInFlight   = errors.New("payment verification is already in progress")
	ErrFinalizationInFlight   = errors.New("order finalization is already in progress")
	ErrNotRetryable           = errors.New("payment failure is not retryable")
	IllegalTransitionError    = errors.New("illegal transition of checkout status")
	ErrCustomerInfoNotAllowed = errors.New("customer info can no longer be changed")
)
