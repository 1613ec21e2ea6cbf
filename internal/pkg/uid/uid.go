// Package uid provides ID generators behind small interfaces so callers can
// pick the shape they need (string or numeric) without binding to a scheme.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}

// NumberID generates numeric identifiers.
type NumberID interface {
	Generate() int64
}
