package controllers

import (
	"database/sql"
	"encoding/json"
	"github.com/examsetu/examsetu_backend/models"
	"github.com/examsetu/examsetu_backend/util"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"strconv"
	"strings"
	"time"
)

func requireAdmin(c *fiber.Ctx) (models.User, bool) {
	user := c.Locals("user").(models.User)
	if user.Role != "admin" {
		return user, false
	}
	return user, true
}

type testInput struct {
	TestID          string             `json:"testId"`
	Title           string             `json:"title"`
	Description     *string            `json:"description"`
	Category        string             `json:"category"`
	DurationMinutes int                `json:"durationMinutes"`
	Price           *float64           `json:"price"`
	Highlights      []models.Highlight `json:"highlights"`
	Instructions    []string           `json:"instructions"`
	Questions       []struct {
		Text    string   `json:"text"`
		Options []string `json:"options"`
		Answer  *int     `json:"answer"`
	} `json:"questions"`
	IsActive *bool `json:"isActive"`
}

// applyTestInput merges the provided fields onto an existing test.
// Absent fields keep their current values; an explicit price of 0 makes
// a test free, while an omitted price changes nothing.
func applyTestInput(test *models.Test, input testInput) {
	if input.Title != "" {
		test.Title = input.Title
	}
	if input.Description != nil {
		test.Description = input.Description
	}
	if input.Category != "" {
		test.Category = input.Category
	}
	if input.DurationMinutes > 0 {
		test.DurationMinutes = input.DurationMinutes
	}
	if input.Price != nil {
		test.Price = *input.Price
	}
	if input.IsActive != nil {
		test.IsActive = *input.IsActive
	}
	if input.Highlights != nil {
		test.Highlights = sanitizeHighlights(input.Highlights)
	}
	if input.Instructions != nil {
		test.Instructions = sanitizeInstructions(input.Instructions)
	}
}

// pageWindow parses pagination query values, clamping them so the LIMIT
// and OFFSET handed to the database are never negative.
func pageWindow(pageStr, limitStr string) (page, limit, offset int) {
	page, _ = strconv.Atoi(pageStr)
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(limitStr)
	if limit < 1 {
		limit = 20
	}
	return page, limit, (page - 1) * limit
}

// sanitizeHighlights keeps only entries with both a title and a
// description, matching what the catalog will render.
func sanitizeHighlights(highlights []models.Highlight) []models.Highlight {
	out := []models.Highlight{}
	for _, h := range highlights {
		if strings.TrimSpace(h.Title) != "" && strings.TrimSpace(h.Description) != "" {
			out = append(out, h)
		}
	}
	return out
}

func sanitizeInstructions(instructions []string) []string {
	out := []string{}
	for _, line := range instructions {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func questionsFromInput(input testInput) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(input.Questions))
	for i, q := range input.Questions {
		answer := -1
		if q.Answer != nil {
			answer = *q.Answer
		}
		questions = append(questions, models.Question{
			Position:      i,
			Text:          q.Text,
			Options:       q.Options,
			CorrectOption: answer,
		})
	}
	if err := validateQuestions(questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func replaceTestQuestions(tx *sql.Tx, testID int, questions []models.Question) error {
	if _, err := tx.Exec("DELETE FROM test_questions WHERE test_id = $1", testID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO test_questions (test_id, position, question, options, correct_option)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, q := range questions {
		if _, err := stmt.Exec(testID, q.Position, q.Text, pq.Array(q.Options), q.CorrectOption); err != nil {
			return err
		}
	}
	return nil
}

func CreateTest(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "Only admins can access this endpoint",
		})
	}

	var input testInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to parse request body",
			"error":   err.Error(),
		})
	}

	price := 0.0
	if input.Price != nil {
		price = *input.Price
	}

	validate := validator.New()
	err := validate.Struct(struct {
		TestID          string  `validate:"required"`
		Title           string  `validate:"required,max=200"`
		Category        string  `validate:"required,oneof=polity history geography economy science current-affairs"`
		DurationMinutes int     `validate:"required,min=1"`
		Price           float64 `validate:"min=0"`
	}{
		TestID:          input.TestID,
		Title:           input.Title,
		Category:        input.Category,
		DurationMinutes: input.DurationMinutes,
		Price:           price,
	})
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}

	questions, err := questionsFromInput(input)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
		})
	}

	var exists bool
	if err := util.DB.QueryRow("SELECT EXISTS(SELECT 1 FROM tests WHERE test_id = $1)", input.TestID).Scan(&exists); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	if exists {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Test with this ID already exists",
		})
	}

	highlightsJSON, err := json.Marshal(sanitizeHighlights(input.Highlights))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	tx, err := util.DB.Begin()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to start transaction",
		})
	}
	defer tx.Rollback()

	var testID int
	err = tx.QueryRow(`
		INSERT INTO tests (test_id, title, description, category, duration_minutes, price, instructions, highlights, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
		RETURNING id
	`, input.TestID, input.Title, input.Description, input.Category, input.DurationMinutes,
		price, pq.Array(sanitizeInstructions(input.Instructions)), highlightsJSON).Scan(&testID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to insert test",
			"error":   err.Error(),
		})
	}

	if err := replaceTestQuestions(tx, testID, questions); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to insert questions",
			"error":   err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to commit transaction",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "Test created successfully",
		"id":      testID,
	})
}

func UpdateTest(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "Only admins can access this endpoint",
		})
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid test ID",
		})
	}

	test, err := fetchTestRow(id, true)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "Test not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	var input testInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to parse request body",
			"error":   err.Error(),
		})
	}

	applyTestInput(test, input)

	validate := validator.New()
	err = validate.Struct(struct {
		Title           string  `validate:"required,max=200"`
		Category        string  `validate:"required,oneof=polity history geography economy science current-affairs"`
		DurationMinutes int     `validate:"required,min=1"`
		Price           float64 `validate:"min=0"`
	}{
		Title:           test.Title,
		Category:        test.Category,
		DurationMinutes: test.DurationMinutes,
		Price:           test.Price,
	})
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}

	var questions []models.Question
	if input.Questions != nil {
		questions, err = questionsFromInput(input)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status":  "error",
				"message": err.Error(),
			})
		}
	}

	highlightsJSON, err := json.Marshal(test.Highlights)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	tx, err := util.DB.Begin()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to start transaction",
		})
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE tests
		SET title = $1, description = $2, category = $3, duration_minutes = $4,
		    price = $5, instructions = $6, highlights = $7, is_active = $8, updated_at = $9
		WHERE id = $10
	`, test.Title, test.Description, test.Category, test.DurationMinutes, test.Price,
		pq.Array(test.Instructions), highlightsJSON, test.IsActive, time.Now(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to update test",
			"error":   err.Error(),
		})
	}

	if questions != nil {
		if err := replaceTestQuestions(tx, id, questions); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Failed to update questions",
				"error":   err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to commit transaction",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Test updated successfully",
	})
}

// DeleteTest deactivates a test. Rows are never hard-deleted so that
// historical attempts and purchases stay resolvable.
func DeleteTest(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "Only admins can access this endpoint",
		})
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid test ID",
		})
	}

	res, err := util.DB.Exec(`
		UPDATE tests SET is_active = false, updated_at = $1 WHERE id = $2
	`, time.Now(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Test not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Test deleted successfully",
	})
}

func GetAllTestsAdmin(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "Only admins can access this endpoint",
		})
	}

	rows, err := util.DB.Query(`
		SELECT t.id, t.test_id, t.title, t.description, t.category, t.duration_minutes,
		       t.price, t.is_active, t.created_at, t.updated_at, COALESCE(q.n, 0)
		FROM tests t
		LEFT JOIN (SELECT test_id, COUNT(*) AS n FROM test_questions GROUP BY test_id) q ON q.test_id = t.id
		ORDER BY t.created_at DESC
	`)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	defer rows.Close()

	tests := []fiber.Map{}
	for rows.Next() {
		var t models.Test
		var totalQuestions int
		if err := rows.Scan(&t.ID, &t.TestID, &t.Title, &t.Description, &t.Category,
			&t.DurationMinutes, &t.Price, &t.IsActive, &t.CreatedAt, &t.UpdatedAt, &totalQuestions); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error",
				"error":  err.Error(),
			})
		}
		tests = append(tests, fiber.Map{
			"id":              t.ID,
			"testId":          t.TestID,
			"title":           t.Title,
			"description":     t.Description,
			"category":        t.Category,
			"durationMinutes": t.DurationMinutes,
			"price":           t.Price,
			"isActive":        t.IsActive,
			"totalQuestions":  totalQuestions,
			"createdAt":       t.CreatedAt,
			"updatedAt":       t.UpdatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"count":  len(tests),
		"tests":  tests,
	})
}

func GetTestAdmin(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "Only admins can access this endpoint",
		})
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid test ID",
		})
	}

	test, err := fetchTestRow(id, true)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "Test not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	test.Questions, err = fetchTestQuestions(test.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"test":   test,
	})
}

func GetAdminStats(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "Only admins can access this endpoint",
		})
	}

	var totalTests, activeTests, totalAttempts, totalUsers, totalPurchases int
	err := util.DB.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM tests),
			(SELECT COUNT(*) FROM tests WHERE is_active = true),
			(SELECT COUNT(*) FROM attempts),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM purchases)
	`).Scan(&totalTests, &activeTests, &totalAttempts, &totalUsers, &totalPurchases)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"stats": fiber.Map{
			"totalTests":     totalTests,
			"activeTests":    activeTests,
			"totalAttempts":  totalAttempts,
			"totalUsers":     totalUsers,
			"totalPurchases": totalPurchases,
		},
	})
}

func GetAllAttemptsAdmin(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "Only admins can access this endpoint",
		})
	}

	page, limit, offset := pageWindow(c.Query("page", "1"), c.Query("limit", "20"))

	rows, err := util.DB.Query(`
		SELECT a.id, a.score, a.percentage, a.started_at, a.submitted_at,
		       u.id, u.name, u.email, t.id, t.test_id, t.title
		FROM attempts a
		JOIN users u ON u.id = a.user_id
		JOIN tests t ON t.id = a.test_id
		ORDER BY a.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	defer rows.Close()

	attempts := []fiber.Map{}
	for rows.Next() {
		var a models.Attempt
		var userID int
		var userName, userEmail, testSlug, testTitle string
		var testID int
		if err := rows.Scan(&a.ID, &a.Score, &a.Percentage, &a.StartedAt, &a.SubmittedAt,
			&userID, &userName, &userEmail, &testID, &testSlug, &testTitle); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error",
				"error":  err.Error(),
			})
		}
		attempts = append(attempts, fiber.Map{
			"id":          a.ID,
			"score":       a.Score,
			"percentage":  a.Percentage,
			"startedAt":   a.StartedAt,
			"submittedAt": a.SubmittedAt,
			"user":        fiber.Map{"id": userID, "name": userName, "email": userEmail},
			"test":        fiber.Map{"id": testID, "testId": testSlug, "title": testTitle},
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":   "success",
		"page":     page,
		"limit":    limit,
		"count":    len(attempts),
		"attempts": attempts,
	})
}
