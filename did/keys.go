package did

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// GenerateECDSAKey generates a new secp256k1 key pair. PublicKey holds the
// 33-byte compressed point and PrivateKey the 32-byte scalar.
func GenerateECDSAKey() (KeyMaterial, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("failed to generate private key: %w", err)
	}

	return KeyMaterial{
		Algorithm:  AlgorithmECDSASecp256k1,
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: crypto.FromECDSA(privateKey),
	}, nil
}

// ECDSAKeyFromHex loads a secp256k1 key pair from a hex private key, with or
// without 0x prefix.
func ECDSAKeyFromHex(privateKeyHex string) (KeyMaterial, error) {
	if len(privateKeyHex) > 1 && privateKeyHex[:2] == hexPrefix {
		privateKeyHex = privateKeyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("failed to parse private key: %w", err)
	}

	return KeyMaterial{
		Algorithm:  AlgorithmECDSASecp256k1,
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: crypto.FromECDSA(privateKey),
	}, nil
}
