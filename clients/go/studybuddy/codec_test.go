package studybuddy

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"testing"

	"github.com/Ashifo7/StudyBuddy/internal/models"
)

func generateTestKeypair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	pubB64, err := MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	return priv, pubB64
}

// encodeBetween builds a routed envelope from alice to bob.
func encodeBetween(t *testing.T, plaintext, alicePub, bobPub string) *models.Envelope {
	t.Helper()
	env, err := Encode(plaintext, alicePub, bobPub)
	if err != nil {
		t.Fatal(err)
	}
	env.ConversationID = "conv-1"
	env.SenderID = "alice"
	env.ReceiverID = "bob"
	return env
}

func TestBothPartiesDecrypt(t *testing.T) {
	alicePriv, alicePub := generateTestKeypair(t)
	bobPriv, bobPub := generateTestKeypair(t)

	env := encodeBetween(t, "meet at the library at 6", alicePub, bobPub)

	asSender, err := Decode(env, "alice", alicePriv)
	if err != nil {
		t.Fatal(err)
	}
	asReceiver, err := Decode(env, "bob", bobPriv)
	if err != nil {
		t.Fatal(err)
	}
	if asSender != "meet at the library at 6" || asReceiver != asSender {
		t.Fatalf("round trip mismatch: sender %q receiver %q", asSender, asReceiver)
	}
}

func TestFreshKeyAndIVPerMessage(t *testing.T) {
	_, alicePub := generateTestKeypair(t)
	_, bobPub := generateTestKeypair(t)

	env1 := encodeBetween(t, "same", alicePub, bobPub)
	env2 := encodeBetween(t, "same", alicePub, bobPub)

	if env1.Ciphertext == env2.Ciphertext {
		t.Fatal("ciphertexts should differ for same plaintext")
	}
	if env1.IV == env2.IV {
		t.Fatal("IVs should differ per message")
	}
	if env1.KeyForReceiver == env2.KeyForReceiver {
		t.Fatal("wrapped keys should differ per message")
	}
}

func TestWrappedKeysDiffer(t *testing.T) {
	_, alicePub := generateTestKeypair(t)
	_, bobPub := generateTestKeypair(t)

	env := encodeBetween(t, "hi", alicePub, bobPub)
	if env.KeyForSender == env.KeyForReceiver {
		t.Fatal("sender and receiver wraps should differ")
	}
}

func TestIVSize(t *testing.T) {
	_, alicePub := generateTestKeypair(t)
	_, bobPub := generateTestKeypair(t)

	env := encodeBetween(t, "hi", alicePub, bobPub)
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		t.Fatal(err)
	}
	if len(iv) != 12 {
		t.Fatalf("expected 12-byte IV, got %d", len(iv))
	}
}

func TestWrongKeyFails(t *testing.T) {
	_, alicePub := generateTestKeypair(t)
	_, bobPub := generateTestKeypair(t)
	strangerPriv, _ := generateTestKeypair(t)

	env := encodeBetween(t, "secret", alicePub, bobPub)

	_, err := Decode(env, "bob", strangerPriv)
	if err == nil {
		t.Fatal("expected error with wrong key")
	}
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
}

func TestNonParticipantFails(t *testing.T) {
	_, alicePub := generateTestKeypair(t)
	bobPriv, bobPub := generateTestKeypair(t)

	env := encodeBetween(t, "secret", alicePub, bobPub)

	_, err := Decode(env, "mallory", bobPriv)
	if err == nil {
		t.Fatal("expected error for non-participant")
	}
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
}

func TestTamperedCiphertext(t *testing.T) {
	alicePriv, alicePub := generateTestKeypair(t)
	_, bobPub := generateTestKeypair(t)

	env := encodeBetween(t, "secret", alicePub, bobPub)
	ct, _ := base64.StdEncoding.DecodeString(env.Ciphertext)
	ct[len(ct)-1] ^= 0xFF
	env.Ciphertext = base64.StdEncoding.EncodeToString(ct)

	_, err := Decode(env, "alice", alicePriv)
	if err == nil {
		t.Fatal("expected error with tampered ciphertext")
	}
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
}

func TestCorruptWrappedKey(t *testing.T) {
	_, alicePub := generateTestKeypair(t)
	bobPriv, bobPub := generateTestKeypair(t)

	env := encodeBetween(t, "secret", alicePub, bobPub)
	env.KeyForReceiver = "not-base64!!"

	_, err := Decode(env, "bob", bobPriv)
	if err == nil {
		t.Fatal("expected error with corrupt wrapped key")
	}
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
}

func TestMissingPublicKey(t *testing.T) {
	_, bobPub := generateTestKeypair(t)

	_, err := Encode("hi", "", bobPub)
	if err == nil {
		t.Fatal("expected error with missing sender key")
	}
	if !IsEncodeError(err) {
		t.Fatalf("expected EncodeError, got %T", err)
	}
}

func TestMalformedPublicKey(t *testing.T) {
	_, alicePub := generateTestKeypair(t)

	_, err := Encode("hi", alicePub, base64.StdEncoding.EncodeToString([]byte("garbage")))
	if err == nil {
		t.Fatal("expected error with malformed receiver key")
	}
	if !IsEncodeError(err) {
		t.Fatalf("expected EncodeError, got %T", err)
	}
}

func TestNoPrivateKey(t *testing.T) {
	_, alicePub := generateTestKeypair(t)
	_, bobPub := generateTestKeypair(t)

	env := encodeBetween(t, "hi", alicePub, bobPub)

	_, err := Decode(env, "bob", nil)
	if err == nil {
		t.Fatal("expected error without private key")
	}
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
}

func TestEmptyPlaintext(t *testing.T) {
	alicePriv, alicePub := generateTestKeypair(t)
	_, bobPub := generateTestKeypair(t)

	env := encodeBetween(t, "", alicePub, bobPub)
	pt, err := Decode(env, "alice", alicePriv)
	if err != nil {
		t.Fatal(err)
	}
	if pt != "" {
		t.Fatalf("expected empty string, got %q", pt)
	}
}

func TestUnicodePlaintext(t *testing.T) {
	_, alicePub := generateTestKeypair(t)
	bobPriv, bobPub := generateTestKeypair(t)

	msg := "Hello \U0001F30D❤️ 日本語"
	env := encodeBetween(t, msg, alicePub, bobPub)
	pt, err := Decode(env, "bob", bobPriv)
	if err != nil {
		t.Fatal(err)
	}
	if pt != msg {
		t.Fatalf("expected %q, got %q", msg, pt)
	}
}

func TestLargeMessage(t *testing.T) {
	bobPriv, bobPub := generateTestKeypair(t)
	_, alicePub := generateTestKeypair(t)

	msg := make([]byte, 8000)
	for i := range msg {
		msg[i] = 'A'
	}
	env := encodeBetween(t, string(msg), alicePub, bobPub)
	pt, err := Decode(env, "bob", bobPriv)
	if err != nil {
		t.Fatal(err)
	}
	if pt != string(msg) {
		t.Fatal("large message round-trip failed")
	}
}
