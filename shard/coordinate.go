package shard

import "math/bits"

// Coordinate decides which records belong in a CopyTo destination.
type Coordinate interface {
	Contains(primary, secondary uint32) bool
}

// CoordinateFunc adapts a function to Coordinate.
type CoordinateFunc func(primary, secondary uint32) bool

// Contains implements Coordinate.
func (f CoordinateFunc) Contains(primary, secondary uint32) bool { return f(primary, secondary) }

// MatchAll keeps every record; CopyTo with it cleans a shard.
var MatchAll Coordinate = CoordinateFunc(func(uint32, uint32) bool { return true })

// HashCoordinate selects records whose hashes agree with PrimaryHash and
// SecondaryHash on the bits set in the corresponding mask. The zero value
// matches everything.
type HashCoordinate struct {
	PrimaryMask   uint32
	PrimaryHash   uint32
	SecondaryMask uint32
	SecondaryHash uint32
}

// Contains implements Coordinate.
func (c HashCoordinate) Contains(primary, secondary uint32) bool {
	return primary&c.PrimaryMask == c.PrimaryHash&c.PrimaryMask &&
		secondary&c.SecondaryMask == c.SecondaryHash&c.SecondaryMask
}

// Split divides c into two disjoint coordinates by fixing the lowest primary
// hash bit it does not constrain yet. ok is false when the primary mask is
// already full.
func (c HashCoordinate) Split() (lo, hi HashCoordinate, ok bool) {
	if c.PrimaryMask == ^uint32(0) {
		return c, c, false
	}
	bit := uint32(1) << bits.TrailingZeros32(^c.PrimaryMask)

	lo, hi = c, c
	lo.PrimaryMask |= bit
	hi.PrimaryMask |= bit
	lo.PrimaryHash = (c.PrimaryHash & c.PrimaryMask) &^ bit
	hi.PrimaryHash = (c.PrimaryHash & c.PrimaryMask) | bit
	return lo, hi, true
}
