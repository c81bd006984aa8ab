package authcore

import (
	"go.pilab.hu/authcore/token"
	"go.pilab.hu/authcore/user"
)

// Token and user errors re-exported for callers that only import the root
// package.
var (
	ErrTokenMalformed       = token.ErrTokenMalformed
	ErrSignatureMismatch    = token.ErrSignatureMismatch
	ErrAlgorithmUnsupported = token.ErrAlgorithmUnsupported

	ErrUserNotFound       = user.ErrNotFound
	ErrInvalidCredentials = user.ErrInvalidCredentials
)
