package postgres

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// md5Password computes the response to an MD5 authentication request:
// "md5" + md5(md5(password + user) + salt).
func md5Password(user, password string, salt [4]byte) string {
	inner := md5.Sum([]byte(password + user))
	outer := md5.Sum(append([]byte(hex.EncodeToString(inner[:])), salt[:]...))
	return "md5" + hex.EncodeToString(outer[:])
}

// scramClient drives one SCRAM-SHA-256 exchange (RFC 5802, RFC 7677).
type scramClient struct {
	user      string
	password  string
	nonce     string
	firstBare string
	serverSig []byte
}

func newScramClient(user, password string) (*scramClient, error) {
	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	nonce := base64.StdEncoding.EncodeToString(raw)

	return &scramClient{
		user:     user,
		password: password,
		nonce:    nonce,
		// The user is carried by the startup message; SCRAM leaves it
		// empty here.
		firstBare: "n=,r=" + nonce,
	}, nil
}

// firstMessage returns the client-first message with the GS2 header for a
// connection that does not use channel binding.
func (c *scramClient) firstMessage() string {
	return "n,," + c.firstBare
}

// finalMessage consumes the server-first message and produces the
// client-final message carrying the proof.
func (c *scramClient) finalMessage(serverFirst string) (string, error) {
	attrs, err := scramAttrs(serverFirst)
	if err != nil {
		return "", err
	}

	combined := attrs["r"]
	if !strings.HasPrefix(combined, c.nonce) || combined == c.nonce {
		return "", errors.New("postgres: server nonce does not extend client nonce")
	}
	salt, err := base64.StdEncoding.DecodeString(attrs["s"])
	if err != nil {
		return "", fmt.Errorf("postgres: bad SCRAM salt: %w", err)
	}
	iterations, err := strconv.Atoi(attrs["i"])
	if err != nil || iterations < 1 {
		return "", errors.New("postgres: bad SCRAM iteration count")
	}

	salted := pbkdf2.Key([]byte(c.password), salt, iterations, sha256.Size, sha256.New)
	clientKey := hmacSHA256(salted, "Client Key")
	storedKey := sha256.Sum256(clientKey)

	withoutProof := "c=biws,r=" + combined
	authMessage := c.firstBare + "," + serverFirst + "," + withoutProof

	clientSig := hmacSHA256(storedKey[:], authMessage)
	proof := make([]byte, len(clientKey))
	for i := range clientKey {
		proof[i] = clientKey[i] ^ clientSig[i]
	}

	serverKey := hmacSHA256(salted, "Server Key")
	c.serverSig = hmacSHA256(serverKey, authMessage)

	return withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof), nil
}

// verifyServerFinal checks the server signature from the server-final
// message.
func (c *scramClient) verifyServerFinal(serverFinal string) error {
	attrs, err := scramAttrs(serverFinal)
	if err != nil {
		return err
	}
	if e, ok := attrs["e"]; ok {
		return fmt.Errorf("postgres: SCRAM authentication failed: %s", e)
	}
	sig, err := base64.StdEncoding.DecodeString(attrs["v"])
	if err != nil {
		return fmt.Errorf("postgres: bad SCRAM server signature: %w", err)
	}
	if !hmac.Equal(sig, c.serverSig) {
		return errors.New("postgres: SCRAM server signature mismatch")
	}
	return nil
}

func hmacSHA256(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

func scramAttrs(msg string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		if len(part) < 2 || part[1] != '=' {
			return nil, fmt.Errorf("postgres: malformed SCRAM attribute %q", part)
		}
		attrs[part[:1]] = part[2:]
	}
	return attrs, nil
}
