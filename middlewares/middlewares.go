package middlewares

import (
	"database/sql"
	"github.com/examsetu/examsetu_backend/models"
	"github.com/examsetu/examsetu_backend/util"
	"github.com/gofiber/fiber/v2"
	"strconv"
)

func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":  "error",
		"message": "Not Found",
	})
}

func tokenFromRequest(c *fiber.Ctx) string {
	if header := c.Get("Authorization"); header != "" {
		return header
	}
	return c.Cookies("token")
}

func fetchUser(userID int) (models.User, error) {
	var user models.User
	query := `SELECT id, name, email, role, google_id, password_changed_at, created_at, updated_at
	          FROM users WHERE id = $1`
	row := util.DB.QueryRow(query, userID)
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.GoogleID,
		&user.PasswordChangedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFromRequest(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "No token provided",
			})
		}
		claims, err := util.VerifyJwtToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid token",
				"error":   err.Error(),
			})
		}

		idClaim, ok := claims["id"].(string)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid token payload",
			})
		}
		userID, err := strconv.Atoi(idClaim)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid token payload",
			})
		}

		user, err := fetchUser(userID)
		if err != nil {
			if err == sql.ErrNoRows {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"status":  "error",
					"message": "User not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Database error",
				"error":   err.Error(),
			})
		}

		if err := util.IsTokenValid(claims, user); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": err.Error(),
			})
		}

		c.Locals("user", user)
		return c.Next()
	}
}

// OptionalAuth resolves the user when a valid token is present but lets
// anonymous requests through. Public catalog reads use it to flag
// purchased tests.
func OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFromRequest(c)
		if token == "" {
			return c.Next()
		}
		claims, err := util.VerifyJwtToken(token)
		if err != nil {
			return c.Next()
		}
		idClaim, ok := claims["id"].(string)
		if !ok {
			return c.Next()
		}
		userID, err := strconv.Atoi(idClaim)
		if err != nil {
			return c.Next()
		}
		user, err := fetchUser(userID)
		if err != nil {
			return c.Next()
		}
		if err := util.IsTokenValid(claims, user); err != nil {
			return c.Next()
		}
		c.Locals("user", user)
		return c.Next()
	}
}
