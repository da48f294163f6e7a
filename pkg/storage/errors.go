package storage

import "errors"

// ErrNotFound is returned when a project snapshot does not exist.
var ErrNotFound = errors.New("project not found")
