package util

import (
	"testing"
	"time"

	"github.com/examsetu/examsetu_backend/models"
	"github.com/stretchr/testify/assert"
)

func TestJwtGenerateAndVerify(t *testing.T) {
	JWTSecret = "test-secret"

	user := models.User{
		ID:    7,
		Email: "asha@example.com",
		Role:  "user",
	}

	token, err := JwtGenerate(user, "7")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := VerifyJwtToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "asha@example.com", claims["email"])
	assert.Equal(t, "user", claims["role"])
	assert.Equal(t, "7", claims["id"])
}

func TestVerifyJwtTokenStripsBearerPrefix(t *testing.T) {
	JWTSecret = "test-secret"

	token, err := JwtGenerate(models.User{Email: "a@b.c", Role: "user"}, "1")
	assert.NoError(t, err)

	claims, err := VerifyJwtToken("Bearer " + token)
	assert.NoError(t, err)
	assert.Equal(t, "1", claims["id"])
}

func TestVerifyJwtTokenWrongSecret(t *testing.T) {
	JWTSecret = "test-secret"
	token, err := JwtGenerate(models.User{Email: "a@b.c"}, "1")
	assert.NoError(t, err)

	JWTSecret = "another-secret"
	_, err = VerifyJwtToken(token)
	assert.Error(t, err)
}

func TestVerifyJwtTokenGarbage(t *testing.T) {
	JWTSecret = "test-secret"
	_, err := VerifyJwtToken("not-a-token")
	assert.Error(t, err)
}

func TestIsTokenValid(t *testing.T) {
	JWTSecret = "test-secret"

	t.Run("accepts token issued after password change", func(t *testing.T) {
		user := models.User{
			Email:             "a@b.c",
			PasswordChangedAt: time.Now().Add(-time.Hour),
		}
		token, err := JwtGenerate(user, "1")
		assert.NoError(t, err)
		claims, err := VerifyJwtToken(token)
		assert.NoError(t, err)

		assert.NoError(t, IsTokenValid(claims, user))
	})

	t.Run("rejects token issued before password change", func(t *testing.T) {
		user := models.User{Email: "a@b.c"}
		token, err := JwtGenerate(user, "1")
		assert.NoError(t, err)
		claims, err := VerifyJwtToken(token)
		assert.NoError(t, err)

		user.PasswordChangedAt = time.Now().Add(time.Hour)
		assert.Error(t, IsTokenValid(claims, user))
	})

	t.Run("rejects claims without iat", func(t *testing.T) {
		err := IsTokenValid(map[string]interface{}{"email": "a@b.c"}, models.User{})
		assert.Error(t, err)
	})
}
