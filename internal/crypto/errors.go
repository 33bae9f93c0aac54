package crypto

import "errors"

// ErrAuthenticationFailed indicates that an envelope could not be opened:
// the authentication tag did not verify (wrong password or tampered
// ciphertext) or the envelope itself is structurally malformed. Callers
// surface it as "wrong password" or "corrupt entry"; it is never retried
// automatically.
var ErrAuthenticationFailed = errors.New("authentication failed")
