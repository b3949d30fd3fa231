package user

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

// credentialCharset is the printable-ASCII alphabet temporary credentials are
// drawn from: letters, digits and symbols.
const credentialCharset = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!@#$%^&*()-_=+[]{};:,.<>?"

// GenerateCredential returns a fresh random credential of the given length,
// each character drawn uniformly from credentialCharset.
func GenerateCredential(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("credential length must be positive")
	}
	max := big.NewInt(int64(len(credentialCharset)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "drawing random index")
		}
		buf[i] = credentialCharset[n.Int64()]
	}
	return string(buf), nil
}
