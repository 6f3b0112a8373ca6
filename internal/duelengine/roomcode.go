package duelengine

import (
	"crypto/rand"
	"math/big"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
)

// generateRoomCode uses crypto/rand.Int index-selection rather than
// math/rand, since this value is shared out-of-band and guessability
// matters.
func generateRoomCode() (string, error) {
	out := make([]byte, roomCodeLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomCodeAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(out), nil
}
