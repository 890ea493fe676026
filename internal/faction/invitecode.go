package faction

import "crypto/rand"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

// NewInvitationCode returns a random 8-character join code. Uniqueness is
// enforced by the store's constraint, not here; callers regenerate on a
// collision.
func NewInvitationCode() string {
	var buf [codeLength]byte
	_, _ = rand.Read(buf[:])
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf[:])
}
