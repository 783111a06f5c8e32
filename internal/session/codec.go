// Package session carries a GitHub token through the browser between the OAuth callback
// and the credential form without exposing it.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
)

// DefaultMaxAge bounds how long a state blob stays valid.
const DefaultMaxAge = time.Hour

// Encryptor is the symmetric cipher used for state blobs.
type Encryptor interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

type state struct {
	Token  string `json:"t"`
	Issued int64  `json:"i"`
}

// Codec encodes GitHub tokens into URL-safe encrypted state blobs.
type Codec struct {
	crypto Encryptor
	maxAge time.Duration
	now    func() time.Time
}

// NewCodec creates a codec. A maxAge of zero uses DefaultMaxAge.
func NewCodec(crypto Encryptor, maxAge time.Duration) *Codec {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Codec{crypto: crypto, maxAge: maxAge, now: time.Now}
}

// Encode returns the state blob for token.
func (c *Codec) Encode(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token is required")
	}
	payload, err := json.Marshal(state{Token: token, Issued: c.now().Unix()})
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	blob, err := c.crypto.EncryptString(string(payload))
	if err != nil {
		return "", fmt.Errorf("encrypt state: %w", err)
	}
	return blob, nil
}

// Decode returns the token inside blob. Tampered, undecryptable or expired blobs mean
// the user has to log in again.
func (c *Codec) Decode(blob string) (string, error) {
	const op = "decode_state"
	if blob == "" {
		return "", internalerrors.NewUserNotLoggedIn(op)
	}

	plaintext, err := c.crypto.DecryptString(blob)
	if err != nil {
		return "", internalerrors.New(internalerrors.KindUserNotLoggedIn, op, fmt.Errorf("decrypt state: %w", err))
	}

	var s state
	if err := json.Unmarshal([]byte(plaintext), &s); err != nil || s.Token == "" {
		return "", internalerrors.New(internalerrors.KindUserNotLoggedIn, op, fmt.Errorf("malformed state"))
	}
	if c.now().Sub(time.Unix(s.Issued, 0)) > c.maxAge {
		return "", internalerrors.New(internalerrors.KindUserNotLoggedIn, op, fmt.Errorf("state expired"))
	}
	return s.Token, nil
}
