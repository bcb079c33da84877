package storage

import (
	"reflect"
	"testing"
)

func TestGradientKeyRoundTrip(t *testing.T) {
	key := GradientKey("0.2.52", 17, 4096)
	if key != "gradients/0.2.52/17/4096.pt" {
		t.Fatalf("GradientKey() = %q", key)
	}

	ref, err := ParseGradientKey(key)
	if err != nil {
		t.Fatalf("ParseGradientKey() error: %v", err)
	}
	want := GradientRef{Version: "0.2.52", UID: 17, Window: 4096}
	if ref != want {
		t.Errorf("ParseGradientKey() = %+v, want %+v", ref, want)
	}
}

func TestParseGradientKey_Malformed(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"wrong prefix", "checkpoints/0.2.52/17/4096.pt"},
		{"missing segment", "gradients/0.2.52/4096.pt"},
		{"extra segment", "gradients/0.2.52/17/extra/4096.pt"},
		{"non-numeric uid", "gradients/0.2.52/miner/4096.pt"},
		{"non-numeric window", "gradients/0.2.52/17/latest.pt"},
		{"missing suffix", "gradients/0.2.52/17/4096"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseGradientKey(tt.key); err == nil {
				t.Errorf("ParseGradientKey(%q) succeeded, want error", tt.key)
			}
		})
	}
}

func TestExtractUIDs(t *testing.T) {
	keys := []string{
		"gradients/0.2.52/17/4096.pt",
		"gradients/0.2.52/3/4096.pt",
		"gradients/0.2.52/17/4097.pt", // duplicate uid
		"gradients/0.2.52/readme.txt", // malformed, skipped
		"gradients/0.2.52/42/4096.pt",
	}

	got := ExtractUIDs(keys)
	want := []int{17, 3, 42}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractUIDs() = %v, want %v", got, want)
	}
}
