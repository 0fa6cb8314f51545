package pools

import "testing"

// TestBytePoolTiers tests tier selection and slice length contracts.
func TestBytePoolTiers(t *testing.T) {
	bp := NewBytePool()

	tests := []struct {
		request int
		wantCap int
	}{
		{100, 2048},
		{2048, 2048},
		{2049, 8192},
		{8192, 8192},
		{32768, 32768},
	}

	for _, tt := range tests {
		buf := bp.Get(tt.request)
		if len(buf) != tt.request {
			t.Errorf("Get(%d): len %d", tt.request, len(buf))
		}
		if cap(buf) != tt.wantCap {
			t.Errorf("Get(%d): cap %d, want %d", tt.request, cap(buf), tt.wantCap)
		}
		bp.Put(buf)
	}
}

// TestBytePoolOversize tests that requests above the largest tier fall
// back to direct allocation.
func TestBytePoolOversize(t *testing.T) {
	bp := NewBytePool()

	buf := bp.Get(100000)
	if len(buf) != 100000 {
		t.Errorf("oversize Get: len %d", len(buf))
	}
	bp.Put(buf)
}
