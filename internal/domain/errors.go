package domain

import "errors"

// ErrNotFound marks a record id that does not exist in the record store. A
// lifecycle hitting it has nowhere to write and is abandoned with a log line.
var ErrNotFound = errors.New("not found")
