package utils

import "testing"

func TestGenerateRefreshToken(t *testing.T) {
	token, hash, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	if token == "" || hash == "" {
		t.Fatal("expected token and hash")
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, expected 64", len(hash))
	}
	if HashRefreshToken(token) != hash {
		t.Error("hash should be reproducible from the token")
	}

	other, _, _ := GenerateRefreshToken()
	if other == token {
		t.Error("tokens should be random")
	}
}
