package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

const minModulusBits = 2048

var ErrInvalidPublicKey = errors.New("invalid RSA public key")

// ValidatePublicKey checks that a base64-encoded string is a PKIX-encoded
// RSA public key of at least 2048 bits. This is the only inspection the
// server performs on published keys; it never holds private material.
func ValidatePublicKey(pubkeyB64 string) (*rsa.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(pubkeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPublicKey)
	}

	parsed, err := x509.ParsePKIXPublicKey(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: not a PKIX key", ErrInvalidPublicKey)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPublicKey)
	}

	if bits := rsaKey.N.BitLen(); bits < minModulusBits {
		return nil, fmt.Errorf("%w: modulus is %d bits, minimum %d", ErrInvalidPublicKey, bits, minModulusBits)
	}

	return rsaKey, nil
}
