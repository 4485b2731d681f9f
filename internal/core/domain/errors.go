package domain

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionExists   = errors.New("subscription already exists")
	ErrInvalidRole          = errors.New("invalid role")
	ErrUserNotConnected     = errors.New("user not connected")
)
