package controllers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"github.com/examsetu/examsetu_backend/models"
	"github.com/examsetu/examsetu_backend/util"
	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"strconv"
	"strings"
)

// fetchTestRow loads a catalog row without its questions. Inactive tests
// are only visible when includeInactive is set (admin views).
func fetchTestRow(id int, includeInactive bool) (*models.Test, error) {
	query := `
		SELECT id, test_id, title, description, category, duration_minutes, price,
		       instructions, highlights, is_active, created_at, updated_at
		FROM tests WHERE id = $1`
	if !includeInactive {
		query += " AND is_active = true"
	}

	var t models.Test
	var highlightsRaw []byte
	err := util.DB.QueryRow(query, id).Scan(
		&t.ID, &t.TestID, &t.Title, &t.Description, &t.Category, &t.DurationMinutes,
		&t.Price, pq.Array(&t.Instructions), &highlightsRaw, &t.IsActive,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(highlightsRaw) > 0 {
		if err := json.Unmarshal(highlightsRaw, &t.Highlights); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// fetchTestQuestions returns a test's questions in catalog order.
func fetchTestQuestions(testID int) ([]models.Question, error) {
	rows, err := util.DB.Query(`
		SELECT position, question, options, correct_option
		FROM test_questions WHERE test_id = $1 ORDER BY position
	`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.Position, &q.Text, pq.Array(&q.Options), &q.CorrectOption); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func hasSuccessPurchase(userID, testID int) (bool, error) {
	var exists bool
	err := util.DB.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM purchases
			WHERE user_id = $1 AND test_id = $2 AND payment_status = 'success'
		)
	`, userID, testID).Scan(&exists)
	return exists, err
}

func defaultHighlights(questionCount, durationMinutes int) []models.Highlight {
	return []models.Highlight{
		{
			Title:       "Comprehensive Question Bank",
			Description: fmt.Sprintf("%d carefully curated questions covering all important topics", questionCount),
			Icon:        "✅",
		},
		{
			Title:       "Instant Results & Analytics",
			Description: "Get detailed performance analysis and track your progress",
			Icon:        "📊",
		},
		{
			Title:       "Timed Practice",
			Description: fmt.Sprintf("Practice under real exam conditions with %d-minute timer", durationMinutes),
			Icon:        "⏰",
		},
		{
			Title:       "Detailed Solutions",
			Description: "Access comprehensive explanations for each question after submission",
			Icon:        "📖",
		},
	}
}

func defaultInstructions(questionCount, durationMinutes int) []string {
	return []string{
		"Read each question carefully before selecting your answer.",
		"You can review and change your answers before submitting. Use the navigation to move between questions freely.",
		fmt.Sprintf("The timer will start once you begin the test. You have %d minutes to complete all %d questions.", durationMinutes, questionCount),
		"Make sure you have a stable internet connection throughout the test to avoid any interruptions.",
		"Once submitted, you cannot retake the test. Review your answers carefully before final submission.",
	}
}

func GetTests(c *fiber.Ctx) error {
	category := c.Query("category")
	search := c.Query("search")

	query := `
		SELECT t.id, t.test_id, t.title, t.description, t.category, t.duration_minutes, t.price,
		       COALESCE(q.n, 0)
		FROM tests t
		LEFT JOIN (SELECT test_id, COUNT(*) AS n FROM test_questions GROUP BY test_id) q ON q.test_id = t.id
		WHERE t.is_active = true
	`
	var args []interface{}
	argID := 1

	if category != "" {
		query += fmt.Sprintf(" AND t.category = $%d", argID)
		args = append(args, category)
		argID++
	}
	if search != "" {
		query += fmt.Sprintf(" AND (t.title ILIKE $%d OR t.description ILIKE $%d)", argID, argID)
		args = append(args, "%"+search+"%")
		argID++
	}
	query += " ORDER BY t.created_at DESC"

	rows, err := util.DB.Query(query, args...)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to fetch tests",
			"error":   err.Error(),
		})
	}
	defer rows.Close()

	type testSummary struct {
		ID              int     `json:"id"`
		TestID          string  `json:"testId"`
		Title           string  `json:"title"`
		Description     *string `json:"description"`
		Category        string  `json:"category"`
		DurationMinutes int     `json:"durationMinutes"`
		Price           float64 `json:"price"`
		TotalQuestions  int     `json:"totalQuestions"`
		IsPurchased     bool    `json:"isPurchased"`
	}

	tests := []testSummary{}
	var ids []int
	for rows.Next() {
		var t testSummary
		if err := rows.Scan(&t.ID, &t.TestID, &t.Title, &t.Description, &t.Category,
			&t.DurationMinutes, &t.Price, &t.TotalQuestions); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error",
				"error":  err.Error(),
			})
		}
		tests = append(tests, t)
		ids = append(ids, t.ID)
	}

	// Flag purchased tests for authenticated callers.
	if user, ok := c.Locals("user").(models.User); ok && len(ids) > 0 {
		prows, err := util.DB.Query(`
			SELECT test_id FROM purchases
			WHERE user_id = $1 AND test_id = ANY($2) AND payment_status = 'success'
		`, user.ID, pq.Array(ids))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error",
				"error":  err.Error(),
			})
		}
		defer prows.Close()
		purchased := map[int]bool{}
		for prows.Next() {
			var id int
			if err := prows.Scan(&id); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"status": "error",
					"error":  err.Error(),
				})
			}
			purchased[id] = true
		}
		for i := range tests {
			tests[i].IsPurchased = purchased[tests[i].ID]
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"count":  len(tests),
		"tests":  tests,
	})
}

func GetTestByID(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid test ID",
		})
	}

	test, err := fetchTestRow(id, false)
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

	questions, err := fetchTestQuestions(test.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to fetch questions",
			"error":   err.Error(),
		})
	}

	isPurchased := false
	if user, ok := c.Locals("user").(models.User); ok {
		isPurchased, err = hasSuccessPurchase(user.ID, test.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error",
				"error":  err.Error(),
			})
		}
	}

	// The answer key stays server-side unless the caller owns the test.
	questionViews := make([]fiber.Map, 0, len(questions))
	for i, q := range questions {
		view := fiber.Map{
			"id":      strconv.Itoa(i),
			"text":    q.Text,
			"options": q.Options,
		}
		if isPurchased {
			view["correctAnswer"] = q.CorrectOption
		}
		questionViews = append(questionViews, view)
	}

	highlights := test.Highlights
	if len(highlights) == 0 {
		highlights = defaultHighlights(len(questions), test.DurationMinutes)
	}
	instructions := []string(test.Instructions)
	if len(instructions) == 0 {
		instructions = defaultInstructions(len(questions), test.DurationMinutes)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"test": fiber.Map{
			"id":              test.ID,
			"testId":          test.TestID,
			"title":           test.Title,
			"description":     test.Description,
			"category":        test.Category,
			"durationMinutes": test.DurationMinutes,
			"price":           test.Price,
			"totalQuestions":  len(questions),
			"isPurchased":     isPurchased,
			"highlights":      highlights,
			"instructions":    instructions,
		},
		"questions": questionViews,
	})
}

// validateQuestions enforces the catalog invariants: 2-6 options per
// question and a correct-answer index inside the option list.
func validateQuestions(questions []models.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("test must have at least one question")
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d: text is required", i)
		}
		if len(q.Options) < 2 || len(q.Options) > 6 {
			return fmt.Errorf("question %d: must have between 2 and 6 options", i)
		}
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			return fmt.Errorf("question %d: correct answer index %d is out of range", i, q.CorrectOption)
		}
	}
	return nil
}
