/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package sandbox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// passwordAlphabet omits visually ambiguous characters (0/O, 1/l/I, i/j)
// because freshly generated passwords are read back to users once.
const passwordAlphabet = "abcdefghkmnpqrstuvwxyzABCDEFGHKMNPQRSTUVWXYZ23456789"

// passwordLength is the length of generated account passwords.
const passwordLength = 16

// GeneratePassword returns a cryptographically random password drawn from
// an unambiguous alphanumeric alphabet.
func GeneratePassword() (string, error) {
	out := make([]byte, passwordLength)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reading randomness: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
