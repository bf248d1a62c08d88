package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectors from RFC 7677 §3.
func TestScramExchange(t *testing.T) {
	c := &scramClient{
		user:      "user",
		password:  "pencil",
		nonce:     "rOprNGfwEbeRWgbNEkqO",
		firstBare: "n=user,r=rOprNGfwEbeRWgbNEkqO",
	}

	serverFirst := "r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0," +
		"s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096"

	final, err := c.finalMessage(serverFirst)
	require.NoError(t, err)
	assert.Equal(t,
		"c=biws,r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,"+
			"p=dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ=",
		final)

	require.NoError(t, c.verifyServerFinal("v=6rriTRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4="))
	assert.Error(t, c.verifyServerFinal("v=AAAATRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4="))
	assert.Error(t, c.verifyServerFinal("e=other-error"))
}

func TestScramRejectsForeignNonce(t *testing.T) {
	c, err := newScramClient("user", "pencil")
	require.NoError(t, err)

	_, err = c.finalMessage("r=completely-different,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096")
	assert.Error(t, err)

	// A server nonce that merely echoes the client nonce is also invalid.
	_, err = c.finalMessage("r=" + c.nonce + ",s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096")
	assert.Error(t, err)
}

func TestScramFirstMessage(t *testing.T) {
	c, err := newScramClient("user", "pencil")
	require.NoError(t, err)

	first := c.firstMessage()
	assert.True(t, strings.HasPrefix(first, "n,,n=,r="))

	other, err := newScramClient("user", "pencil")
	require.NoError(t, err)
	assert.NotEqual(t, c.nonce, other.nonce)
}

func TestMD5Password(t *testing.T) {
	salt := [4]byte{0x01, 0x02, 0x03, 0x04}
	hashed := md5Password("alice", "secret", salt)

	assert.True(t, strings.HasPrefix(hashed, "md5"))
	assert.Len(t, hashed, 35)
	assert.Equal(t, hashed, md5Password("alice", "secret", salt))
	assert.NotEqual(t, hashed, md5Password("alice", "secret", [4]byte{0xFF, 0x02, 0x03, 0x04}))
	assert.NotEqual(t, hashed, md5Password("bob", "secret", salt))
}
