package model

import (
	"github.com/pkg/errors"
)

var (
	ErrConfig               = errors.New("configuration error")
	ErrValidation           = errors.New("invalid policy parameters")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrInvalidState         = errors.New("invalid state")
)
