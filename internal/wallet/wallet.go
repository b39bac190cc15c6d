package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// AddressFromPrivateKey derives the EVM address for a hex-encoded secp256k1
// private key. Keys may come with or without a 0x prefix; the returned address
// is EIP-55 checksummed, which is the form the store dedups on.
func AddressFromPrivateKey(privateKey string) (string, error) {
	hexKey := strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	if hexKey == "" {
		return "", fmt.Errorf("empty private key")
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
