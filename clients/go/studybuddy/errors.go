package studybuddy

import "errors"

// KeygenError means the platform crypto provider could not produce a
// keypair. Fatal for encrypted messaging in this session; retry later.
type KeygenError struct {
	Err error
}

func (e *KeygenError) Error() string {
	return "keypair generation failed: " + e.Err.Error()
}

func (e *KeygenError) Unwrap() error { return e.Err }

// PublishError means the locally generated key could not be published to
// the directory. Non-fatal: the key is kept and the publish is retried on
// the next EnsureKeypair call.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string {
	return "public key publish failed: " + e.Err.Error()
}

func (e *PublishError) Unwrap() error { return e.Err }

// EncodeError means a message could not be encrypted. Fatal for that one
// send attempt only.
type EncodeError struct {
	Message string
}

func (e *EncodeError) Error() string { return e.Message }

// DecodeError means a stored or delivered envelope could not be
// decrypted. Recoverable per message: callers render a placeholder and
// move on.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string { return e.Message }

// IsEncodeError reports whether err is an EncodeError.
func IsEncodeError(err error) bool {
	var ee *EncodeError
	return errors.As(err, &ee)
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
