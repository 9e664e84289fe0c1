package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	fields := strings.Split(hash, "$")
	if len(fields) != 6 || fields[1] != "argon2id" || fields[2] != "v=19" || fields[3] != "m=65536,t=3,p=1" {
		t.Fatalf("HashPassword() = %q, want $argon2id$v=19$m=65536,t=3,p=1$salt$key", hash)
	}

	again, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if again == hash {
		t.Error("identical hashes for one password; salt not random")
	}

	tests := []struct {
		candidate string
		want      bool
	}{
		{"s3cret", true},
		{"S3cret", false},
		{"", false},
		{"s3cret ", false},
	}
	for _, tt := range tests {
		got, err := VerifyPassword(tt.candidate, hash)
		if err != nil {
			t.Fatalf("VerifyPassword(%q) error = %v", tt.candidate, err)
		}
		if got != tt.want {
			t.Errorf("VerifyPassword(%q) = %v, want %v", tt.candidate, got, tt.want)
		}
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for name, stored := range map[string]string{
		"empty":          "",
		"plaintext":      "s3cret",
		"bcrypt":         "$2a$10$abcdefghijklmnopqrstuu",
		"truncated":      "$argon2id$v=19$m=65536,t=3,p=1",
		"argon2 v16":     "$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"bad params":     "$argon2id$v=19$m=x,t=3,p=1$c2FsdA$aGFzaA",
		"salt not b64":   "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA",
		"missing digest": "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := VerifyPassword("s3cret", stored); !errors.Is(err, errMalformedHash) {
				t.Errorf("VerifyPassword() error = %v, want errMalformedHash", err)
			}
		})
	}
}
