package lvm

import "testing"

func TestIsSupportedPESize(t *testing.T) {
	tests := []struct {
		size uint64
		want bool
	}{
		{MinPESize, true},
		{MaxPESize, true},
		{DefaultPESize, true},
		{MinPESize - 2, false},
		{MaxPESize * 2, false},
		{MinPESize + 1, false}, // odd
	}
	for _, tt := range tests {
		if got := IsSupportedPESize(tt.size); got != tt.want {
			t.Errorf("IsSupportedPESize(%d) = %v, want %v", tt.size, got, tt.want)
		}
	}
}

func TestSupportedPESizes(t *testing.T) {
	sizes := SupportedPESizes()
	if sizes[0] != MinPESize {
		t.Errorf("first = %d, want %d", sizes[0], uint64(MinPESize))
	}
	if sizes[len(sizes)-1] != MaxPESize {
		t.Errorf("last = %d, want %d", sizes[len(sizes)-1], uint64(MaxPESize))
	}
	for i := 1; i < len(sizes); i++ {
		if sizes[i] != sizes[i-1]*2 {
			t.Errorf("sizes[%d] = %d, not double the previous", i, sizes[i])
		}
	}
}

func TestRoundSizeToPE(t *testing.T) {
	tests := []struct {
		name    string
		size    uint64
		peSize  uint64
		roundUp bool
		want    uint64
	}{
		{"exact multiple untouched", 8 << 20, 4 << 20, true, 8 << 20},
		{"round up", (4 << 20) + 1, 4 << 20, true, 8 << 20},
		{"round down", (8 << 20) - 1, 4 << 20, false, 4 << 20},
		{"zero selects default", (4 << 20) + 1, 0, true, 8 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundSizeToPE(tt.size, tt.peSize, tt.roundUp); got != tt.want {
				t.Errorf("RoundSizeToPE(%d, %d, %v) = %d, want %d",
					tt.size, tt.peSize, tt.roundUp, got, tt.want)
			}
		})
	}
}

func TestLVPhysicalSize(t *testing.T) {
	// rounded up to a PE boundary plus one PE of metadata
	got := LVPhysicalSize((4<<20)+1, 4<<20)
	want := uint64(12 << 20)
	if got != want {
		t.Errorf("LVPhysicalSize = %d, want %d", got, want)
	}
}

func TestThPoolPaddingCappedAtMaxMDSize(t *testing.T) {
	// a huge pool would want more metadata than the maximum allows
	padding := ThPoolPadding(1<<40, 4<<20, false)
	capped := RoundSizeToPE(MaxThPoolMDSize, 4<<20, true)
	if padding != capped {
		t.Errorf("padding = %d, want capped at %d", padding, capped)
	}

	small := ThPoolPadding(1<<30, 4<<20, false)
	if small >= padding {
		t.Errorf("small pool padding %d not below the cap", small)
	}
}

func TestThPoolPaddingIncludedUsesLowerFactor(t *testing.T) {
	size := uint64(1 << 30)
	if ThPoolPadding(size, 4<<20, true) > ThPoolPadding(size, 4<<20, false) {
		t.Error("included padding should not exceed new-pool padding")
	}
}

func TestIsValidThPoolMDSize(t *testing.T) {
	if !IsValidThPoolMDSize(MinThPoolMDSize) || !IsValidThPoolMDSize(MaxThPoolMDSize) {
		t.Error("bounds must be valid")
	}
	if IsValidThPoolMDSize(MinThPoolMDSize-1) || IsValidThPoolMDSize(MaxThPoolMDSize+1) {
		t.Error("out-of-range sizes must be invalid")
	}
}

func TestIsValidThPoolChunkSize(t *testing.T) {
	tests := []struct {
		name    string
		size    uint64
		discard bool
		want    bool
	}{
		{"min power of two with discard", 64 << 10, true, true},
		{"non power of two with discard", 192 << 10, true, false},
		{"non power of two multiple without discard", 192 << 10, false, true},
		{"below minimum", 32 << 10, false, false},
		{"above maximum", 2 << 30, true, false},
		{"unaligned without discard", (64 << 10) + 512, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidThPoolChunkSize(tt.size, tt.discard); got != tt.want {
				t.Errorf("IsValidThPoolChunkSize(%d, %v) = %v, want %v",
					tt.size, tt.discard, got, tt.want)
			}
		})
	}
}
