package wallet

import "testing"

func TestAddressFromPrivateKey(t *testing.T) {
	// Well-known test vector (hardhat dev account #0).
	const key = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	const want = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	tests := []struct {
		name  string
		input string
	}{
		{"bare hex", key},
		{"0x prefix", "0x" + key},
		{"surrounding whitespace", "  " + key + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddressFromPrivateKey(tt.input)
			if err != nil {
				t.Fatalf("AddressFromPrivateKey: %v", err)
			}
			if got != want {
				t.Errorf("address = %s, want %s", got, want)
			}
		})
	}
}

func TestAddressFromPrivateKeyInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not hex", "zzzz"},
		{"too short", "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AddressFromPrivateKey(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}
