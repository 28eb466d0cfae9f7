package repository

import "errors"

// ErrDuplicateEmail is returned by Create when the unique email constraint is violated.
var ErrDuplicateEmail = errors.New("user: email already exists")
