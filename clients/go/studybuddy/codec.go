package studybuddy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/Ashifo7/StudyBuddy/internal/models"
)

const (
	aesKeySize = 32 // AES-256
	ivSize     = 12 // GCM standard nonce
)

// Encode encrypts plaintext into the crypto fields of an envelope. A
// fresh symmetric key and IV are generated per call and never reused;
// the key is wrapped under both public keys so that either participant
// can decrypt the message later. Wrapping for the sender too is what
// lets a sender read their own history from a different session without
// retaining plaintext. Routing fields (conversation, sender, receiver
// ids) are the caller's to fill in.
func Encode(plaintext string, senderPubB64, receiverPubB64 string) (*models.Envelope, error) {
	senderPub, err := parsePublicKey(senderPubB64)
	if err != nil {
		return nil, &EncodeError{Message: fmt.Sprintf("invalid sender public key: %v", err)}
	}
	receiverPub, err := parsePublicKey(receiverPubB64)
	if err != nil {
		return nil, &EncodeError{Message: fmt.Sprintf("invalid receiver public key: %v", err)}
	}

	// Fresh key and IV per message
	key := make([]byte, aesKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, &EncodeError{Message: fmt.Sprintf("random key generation failed: %v", err)}
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, &EncodeError{Message: fmt.Sprintf("random IV generation failed: %v", err)}
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, &EncodeError{Message: fmt.Sprintf("cipher init failed: %v", err)}
	}
	ciphertext := aead.Seal(nil, iv, []byte(plaintext), nil)

	keyForSender, err := wrapKey(key, senderPub)
	if err != nil {
		return nil, &EncodeError{Message: fmt.Sprintf("key wrap for sender failed: %v", err)}
	}
	keyForReceiver, err := wrapKey(key, receiverPub)
	if err != nil {
		return nil, &EncodeError{Message: fmt.Sprintf("key wrap for receiver failed: %v", err)}
	}

	return &models.Envelope{
		Ciphertext:     base64.StdEncoding.EncodeToString(ciphertext),
		KeyForSender:   keyForSender,
		KeyForReceiver: keyForReceiver,
		IV:             base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decode recovers the plaintext of an envelope for the participant
// selfID. The wrapped-key field is chosen by role: senders unwrap
// keyForSender, receivers keyForReceiver. Any failure — unknown role,
// unwrap with the wrong key, tampered ciphertext — yields a DecodeError,
// never corrupted plaintext.
func Decode(env *models.Envelope, selfID string, priv *rsa.PrivateKey) (string, error) {
	if priv == nil {
		return "", &DecodeError{Message: "no private key available"}
	}

	var wrappedB64 string
	switch selfID {
	case env.SenderID:
		wrappedB64 = env.KeyForSender
	case env.ReceiverID:
		wrappedB64 = env.KeyForReceiver
	default:
		return "", &DecodeError{Message: "not a participant in this envelope"}
	}

	wrapped, err := base64.StdEncoding.DecodeString(wrappedB64)
	if err != nil {
		return "", &DecodeError{Message: "invalid base64 wrapped key"}
	}
	key, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
	if err != nil {
		return "", &DecodeError{Message: "key unwrap failed: wrong key or corrupted data"}
	}

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return "", &DecodeError{Message: "invalid base64 IV"}
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", &DecodeError{Message: "invalid base64 ciphertext"}
	}

	aead, err := newGCM(key)
	if err != nil {
		return "", &DecodeError{Message: fmt.Sprintf("cipher init failed: %v", err)}
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", &DecodeError{Message: "decryption failed: wrong key or tampered ciphertext"}
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// wrapKey asymmetrically encrypts the symmetric key under one
// participant's public key (OAEP with SHA-256).
func wrapKey(key []byte, pub *rsa.PublicKey) (string, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// parsePublicKey decodes a base64 PKIX RSA public key as published to
// the directory.
func parsePublicKey(pubB64 string) (*rsa.PublicKey, error) {
	if pubB64 == "" {
		return nil, fmt.Errorf("missing public key")
	}
	der, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("invalid PKIX key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA key")
	}
	return pub, nil
}

// MarshalPublicKey encodes an RSA public key into the directory's base64
// PKIX wire form.
func MarshalPublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}
