package qdrant

import "testing"

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"", "localhost", 6334, false},
		{"http://localhost:6333", "localhost", 6334, false},
		{"http://qdrant:6334", "qdrant", 6334, false},
		{"http://10.0.0.5:7000", "10.0.0.5", 7000, false},
		{"http://qdrant", "qdrant", 6334, false},
		{"http://qdrant:abc", "", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			host, port, err := parseEndpoint(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseEndpoint(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if host != tc.wantHost || port != tc.wantPort {
				t.Errorf("parseEndpoint(%q) = %s:%d, want %s:%d", tc.in, host, port, tc.wantHost, tc.wantPort)
			}
		})
	}
}

func TestPointIDRejectsNonPositive(t *testing.T) {
	for _, id := range []int64{0, -3} {
		if _, err := pointID(id); err == nil {
			t.Errorf("pointID(%d) expected error", id)
		}
	}
	p, err := pointID(42)
	if err != nil {
		t.Fatalf("pointID(42) error: %v", err)
	}
	if p.GetNum() != 42 {
		t.Errorf("pointID(42).GetNum() = %d", p.GetNum())
	}
}
