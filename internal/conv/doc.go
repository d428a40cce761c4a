// Package conv provides bounds-checked integer conversions.
//
// Use them where a value comes from disk or from a geometry whose product may
// not fit the platform int. Provably bounded values are cast directly.
package conv
