package security

import (
	"strings"
	"testing"
)

func TestDetectAndMaskPII(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		want     bool
		contains string // substring expected in the masked output
	}{
		{
			name:     "email",
			text:     "reach me at jane.doe@example.com please",
			want:     true,
			contains: "[MASKED_EMAIL]",
		},
		{
			name:     "phone",
			text:     "call (918) 555-1234 tomorrow",
			want:     true,
			contains: "[MASKED_PHONE]",
		},
		{
			name:     "ssn",
			text:     "my ssn is 123-45-6789",
			want:     true,
			contains: "[MASKED_", // the ssn digits also match broader patterns
		},
		{
			name:     "six digit citizen id",
			text:     "my id number is 123456",
			want:     true,
			contains: "[MASKED_CITIZEN_ID]",
		},
		{
			name: "clean text",
			text: "where can I renew my vehicle registration?",
			want: false,
		},
		{
			name: "empty",
			text: "",
			want: false,
		},
		{
			name:     "ip address",
			text:     "my server is 192.168.0.1",
			want:     true,
			contains: "[MASKED_IP_ADDRESS]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			found, masked := DetectAndMaskPII(tt.text)
			if found != tt.want {
				t.Fatalf("DetectAndMaskPII(%q) found = %v, want %v", tt.text, found, tt.want)
			}
			if !tt.want && masked != tt.text {
				t.Errorf("clean text was modified: %q -> %q", tt.text, masked)
			}
			if tt.contains != "" && !strings.Contains(masked, tt.contains) {
				t.Errorf("masked = %q, want substring %q", masked, tt.contains)
			}
		})
	}
}
