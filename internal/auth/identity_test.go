package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "foo@bar.com", NormalizeEmail("Foo@Bar.com "))
	assert.Equal(t, "foo@bar.com", NormalizeEmail("\tfoo@bar.com"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizeEmailIsIdempotent(t *testing.T) {
	for _, in := range []string{"Foo@Bar.com ", " A@X.COM", "plain@x.com"} {
		once := NormalizeEmail(in)
		assert.Equal(t, once, NormalizeEmail(once), in)
	}
}

func TestIdentityKey(t *testing.T) {
	var nilIdentity *Identity
	assert.Equal(t, "", nilIdentity.Key())

	id := &Identity{Email: " Alice@Example.COM"}
	assert.Equal(t, "alice@example.com", id.Key())
}
