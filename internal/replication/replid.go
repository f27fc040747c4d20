package replication

import "crypto/rand"

const replIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateReplID produces a 40-character random replication ID drawn
// from lowercase letters and digits (replIDAlphabet).
func GenerateReplID() string {
	b := make([]byte, 40)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	for i := range b {
		b[i] = replIDAlphabet[int(b[i])%len(replIDAlphabet)]
	}
	return string(b)
}
