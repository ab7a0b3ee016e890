package repository

import "errors"

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrDuplicateIdentifier = errors.New("product identifier already exists")
	ErrInsufficientStock   = errors.New("insufficient stock")
)
