package user

import (
	"strings"
	"testing"
)

func TestGenerateCredential(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{name: "negative length", length: -1, wantErr: true},
		{name: "zero length", length: 0, wantErr: true},
		{name: "short", length: 4},
		{name: "default", length: 12},
		{name: "long", length: 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := GenerateCredential(tt.length)
			if tt.wantErr {
				if err == nil {
					t.Error("GenerateCredential() expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateCredential() error = %v", err)
			}
			if len(cred) != tt.length {
				t.Errorf("len = %d, want %d", len(cred), tt.length)
			}
			for _, char := range cred {
				if !strings.ContainsRune(credentialCharset, char) {
					t.Errorf("credential contains %q, not in charset", char)
				}
			}
		})
	}
}

func TestGenerateCredential_fresh(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		cred, err := GenerateCredential(12)
		if err != nil {
			t.Fatalf("GenerateCredential() error = %v", err)
		}
		if seen[cred] {
			t.Fatalf("credential %q generated twice", cred)
		}
		seen[cred] = true
	}
}
