package util

// Ptr returns a pointer to the given value. Useful for populating optional
// configuration fields from literals.
func Ptr[T any](v T) *T {
	return &v
}
