// Package repository implements the persistence layer on MySQL.  It
// defines sentinel error values shared across repositories so higher
// layers can distinguish failure scenarios without string matching:
// a missing vehicle is a 404, a duplicate email a 409, and so on.
package repository

import "errors"

// ErrVehicleNotFound is returned when a vehicle id does not exist in
// the catalog tables.
var ErrVehicleNotFound = errors.New("vehicle not found")

// ErrEmailExists is returned when registering an email that already
// has an account.
var ErrEmailExists = errors.New("email already exists")
