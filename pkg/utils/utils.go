package utils

import "fmt"

// Must panics if err is non-nil. It is meant for package-level initialization
// of values that cannot reasonably fail at runtime.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("unexpected error: %v", err))
	}

	return v
}
