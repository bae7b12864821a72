// Package repository owns all SQL against the MySQL store. Sentinel
// errors defined here let handlers and services distinguish failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrEmailExists is returned when registration collides with an existing
// account. Handlers translate it into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a looked-up row does not exist. The
// webhook path maps it onto the unknown-order case, which is absorbed
// rather than surfaced to the processor.
var ErrNotFound = errors.New("not found")
