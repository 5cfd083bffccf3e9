package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassword_HashAndCompare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("s3cret-pass")
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	ok, err := ComparePassword("s3cret-pass", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong-pass", hash)
	req.NoError(err)
	req.False(ok)
}

func TestPassword_HashesAreSalted(t *testing.T) {
	req := require.New(t)

	h1, err := HashPassword("same")
	req.NoError(err)
	h2, err := HashPassword("same")
	req.NoError(err)
	req.NotEqual(h1, h2)
}

func TestPassword_MalformedHashRejected(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("x", "not-a-hash")
	req.Error(err)

	_, err = ComparePassword("x", "$argon2id$v=19$m=65536,t=3,p=2$!!!$AAAA")
	req.Error(err)
}
