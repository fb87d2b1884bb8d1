package bleframe

import (
	"testing"

	"tinygo.org/x/bluetooth"
)

func TestMatchAdvertisement(t *testing.T) {
	var addr bluetooth.Address

	tests := []struct {
		name     string
		local    string
		prefixes []string
		want     bool
	}{
		{"unnamed", "", []string{""}, false},
		{"empty prefix matches any name", "anything", []string{""}, true},
		{"prefix match", "RAME-01", []string{"RAME"}, true},
		{"case sensitive", "rame-01", []string{"RAME"}, false},
		{"prefix longer than name", "RA", []string{"RAME"}, false},
		{"second prefix", "MOCK-bench", []string{"RAME", "MOCK"}, true},
		{"no prefixes", "RAME-01", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchAdvertisement(tt.local, addr, -61, tt.prefixes)
			if ok != tt.want {
				t.Fatalf("matched = %v, want %v", ok, tt.want)
			}
			if !ok {
				if got != (FoundDevice{}) {
					t.Fatalf("rejected advertisement returned %+v", got)
				}
				return
			}
			if got.Name != tt.local {
				t.Errorf("Name = %q, want %q", got.Name, tt.local)
			}
			if got.RSSI != -61 {
				t.Errorf("RSSI = %d, want -61", got.RSSI)
			}
			if got.ID != addr.String() || got.Address != addr {
				t.Errorf("ID = %q, Address = %v, want %q", got.ID, got.Address, addr.String())
			}
		})
	}
}

func TestGetPrefixes_customScanner(t *testing.T) {
	got := getPrefixes("A", "B")
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("getPrefixes = %v", got)
	}
}
