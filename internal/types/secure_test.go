package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

const testSecret = "nasa-key-12345"

func TestSecretStringRedacts(t *testing.T) {
	s := SecretString(testSecret)

	if got := fmt.Sprintf("key=%s %v", s, s); strings.Contains(got, testSecret) {
		t.Errorf("fmt leaked the raw secret: %s", got)
	}

	b, err := json.Marshal(struct {
		Key SecretString `json:"key"`
	}{s})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), testSecret) {
		t.Errorf("JSON leaked the raw secret: %s", b)
	}
}

func TestSecretStringUnmask(t *testing.T) {
	s := SecretString(testSecret)
	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q", s.Unmask())
	}
	if !s.IsSet() || SecretString("").IsSet() {
		t.Error("IsSet mismatch")
	}
}
