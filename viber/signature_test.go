package viber

import (
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"message"}`)
	sig := Sign("secret-token", body)

	if err := VerifySignature("secret-token", body, sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := VerifySignature("other-token", body, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("wrong token = %v, want ErrInvalidSignature", err)
	}
	if err := VerifySignature("secret-token", []byte(`tampered`), sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered body = %v, want ErrInvalidSignature", err)
	}
	if err := VerifySignature("secret-token", body, "zz-not-hex"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("garbage signature = %v, want ErrInvalidSignature", err)
	}
	if err := VerifySignature("secret-token", body, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("missing signature = %v, want ErrInvalidSignature", err)
	}
}
