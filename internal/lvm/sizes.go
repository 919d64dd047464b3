package lvm

import (
	"math"
	"math/bits"
)

// Size limits imposed by LVM. All values are in bytes.
const (
	MinPESize     = 1 << 10 // 1 KiB
	MaxPESize     = 1 << 34 // 16 GiB
	DefaultPESize = 4 << 20 // 4 MiB

	MaxLVSize = 1 << 63 // 8 EiB

	MinThPoolMDSize    = 2 << 20 // 2 MiB
	MaxThPoolMDSize    = 1 << 34 // 16 GiB
	MinThPoolChunkSize = 64 << 10
	MaxThPoolChunkSize = 1 << 30
)

// Thin pool metadata grows with pool usage; these factors estimate how much
// to reserve depending on whether the pool already exists.
const (
	thPoolMDFactorNew    = 0.2
	thPoolMDFactorExists = 1.0 / 6.0
)

// resolvePESize substitutes the default for the "use default" zero value.
func resolvePESize(peSize uint64) uint64 {
	if peSize == 0 {
		return DefaultPESize
	}
	return peSize
}

// IsSupportedPESize reports whether size is usable as a physical extent size.
func IsSupportedPESize(size uint64) bool {
	return size%2 == 0 && size >= MinPESize && size <= MaxPESize
}

// SupportedPESizes returns every supported PE size, ascending. The supported
// sizes are exactly the powers of two between MinPESize and MaxPESize.
func SupportedPESizes() []uint64 {
	var sizes []uint64
	for v := uint64(MinPESize); v <= MaxPESize; v *= 2 {
		sizes = append(sizes, v)
	}
	return sizes
}

// RoundSizeToPE rounds size to a multiple of peSize, up when roundUp is set,
// down otherwise. A peSize of 0 selects the default PE size.
func RoundSizeToPE(size, peSize uint64, roundUp bool) uint64 {
	peSize = resolvePESize(peSize)
	delta := size % peSize
	if delta == 0 {
		return size
	}
	if roundUp {
		return size + (peSize - delta)
	}
	return size - delta
}

// LVPhysicalSize returns the number of bytes an LV of lvSize occupies on
// disk with the given PE size, including one extra PE for metadata.
func LVPhysicalSize(lvSize, peSize uint64) uint64 {
	peSize = resolvePESize(peSize)
	return RoundSizeToPE(lvSize, peSize, true) + peSize
}

// ThPoolPadding returns the space to reserve for metadata of a thin pool of
// the given size. included says whether size already accounts for the
// padding, which lowers the growth estimate. The result is capped at the
// maximum metadata size, both rounded up to the PE size.
func ThPoolPadding(size, peSize uint64, included bool) uint64 {
	peSize = resolvePESize(peSize)

	factor := thPoolMDFactorNew
	if included {
		factor = thPoolMDFactorExists
	}
	rawMDSize := uint64(math.Ceil(float64(size) * factor))

	return min(RoundSizeToPE(rawMDSize, peSize, true),
		RoundSizeToPE(MaxThPoolMDSize, peSize, true))
}

// IsValidThPoolMDSize reports whether size is a valid thin pool metadata size.
func IsValidThPoolMDSize(size uint64) bool {
	return size >= MinThPoolMDSize && size <= MaxThPoolMDSize
}

// IsValidThPoolChunkSize reports whether size is a valid thin pool chunk
// size. Discard support requires a power-of-two chunk; without it a multiple
// of 64 KiB is enough.
func IsValidThPoolChunkSize(size uint64, discard bool) bool {
	if size < MinThPoolChunkSize || size > MaxThPoolChunkSize {
		return false
	}
	if discard {
		return bits.OnesCount64(size) == 1
	}
	return size%MinThPoolChunkSize == 0
}
