package stock

import "fmt"

// ValidationError rejects a malformed batch before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OutOfStockError means a dose was marked taken with no matching stock on
// hand. The dose is left untouched.
type OutOfStockError struct {
	Name     string
	Strength int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("no stock available for %s %dmg", e.Name, e.Strength)
}
