package controllers

import (
	"database/sql"
	"encoding/json"
	"github.com/examsetu/examsetu_backend/models"
	"github.com/examsetu/examsetu_backend/util"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"math"
	"strconv"
	"time"
)

// scoreAnswers counts exact matches between the stored answer map and
// the correct-option list, iterating in catalog order. Unanswered
// questions never match.
func scoreAnswers(answers map[string]int, correctOptions []int) int {
	score := 0
	for i, correct := range correctOptions {
		selected, ok := answers[strconv.Itoa(i)]
		if ok && selected == correct {
			score++
		}
	}
	return score
}

// computePercentage rounds half up; a test with no questions scores 0.
func computePercentage(score, totalQuestions int) int {
	if totalQuestions == 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(totalQuestions) * 100))
}

func clampIndex(index, questionCount int) int {
	if questionCount <= 0 {
		return 0
	}
	if index < 0 {
		return 0
	}
	if index > questionCount-1 {
		return questionCount - 1
	}
	return index
}

// unionVisited merges newly visited question IDs into the existing set,
// preserving first-seen order. The visited set never shrinks.
func unionVisited(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	for _, id := range incoming {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}

func scanAnswers(raw []byte) (map[string]int, error) {
	answers := map[string]int{}
	if len(raw) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func fetchAttempt(id uuid.UUID, userID int) (*models.Attempt, error) {
	var a models.Attempt
	var answersRaw []byte
	err := util.DB.QueryRow(`
		SELECT id, user_id, test_id, answers, marked_questions, current_question_index,
		       visited_questions, started_at, submitted_at, score, percentage, created_at, updated_at
		FROM attempts WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(
		&a.ID, &a.UserID, &a.TestID, &answersRaw, pq.Array(&a.MarkedQuestions),
		&a.CurrentQuestionIndex, pq.Array(&a.VisitedQuestions), &a.StartedAt,
		&a.SubmittedAt, &a.Score, &a.Percentage, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Answers, err = scanAnswers(answersRaw)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func attemptIDFromParams(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

func CreateAttempt(c *fiber.Ctx) error {
	var input struct {
		TestID int `json:"testId"`
	}
	if err := c.BodyParser(&input); err != nil || input.TestID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Test ID is required",
		})
	}

	user := c.Locals("user").(models.User)

	if _, err := fetchTestRow(input.TestID, false); err != nil {
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

	purchased, err := hasSuccessPurchase(user.ID, input.TestID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	if !purchased {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "You must purchase this test before attempting it",
		})
	}

	// The partial unique index on open attempts makes this race-safe:
	// of two concurrent creates one inserts, the other falls through to
	// the reselect below.
	var attemptID uuid.UUID
	var startedAt *time.Time
	err = util.DB.QueryRow(`
		INSERT INTO attempts (user_id, test_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, test_id) WHERE submitted_at IS NULL DO NOTHING
		RETURNING id, started_at
	`, user.ID, input.TestID).Scan(&attemptID, &startedAt)
	if err == nil {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":  "success",
			"message": "Attempt created successfully",
			"attempt": fiber.Map{
				"attemptId": attemptID,
				"testId":    input.TestID,
				"startedAt": startedAt,
			},
		})
	}
	if err != sql.ErrNoRows {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to create attempt",
			"error":   err.Error(),
		})
	}

	err = util.DB.QueryRow(`
		SELECT id, started_at FROM attempts
		WHERE user_id = $1 AND test_id = $2 AND submitted_at IS NULL
	`, user.ID, input.TestID).Scan(&attemptID, &startedAt)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to fetch existing attempt",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Existing attempt found",
		"attempt": fiber.Map{
			"attemptId": attemptID,
			"testId":    input.TestID,
			"startedAt": startedAt,
		},
	})
}

func GetAttempt(c *fiber.Ctx) error {
	attemptID, err := attemptIDFromParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid attempt ID",
		})
	}
	user := c.Locals("user").(models.User)

	attempt, err := fetchAttempt(attemptID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "Attempt not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	test, err := fetchTestRow(attempt.TestID, true)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	questions, err := fetchTestQuestions(attempt.TestID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to fetch questions",
			"error":   err.Error(),
		})
	}

	// The answer key never leaves this read path, whatever the state of
	// the attempt or purchase.
	questionViews := make([]fiber.Map, 0, len(questions))
	for i, q := range questions {
		var selected interface{}
		if v, ok := attempt.Answers[strconv.Itoa(i)]; ok {
			selected = v
		}
		questionViews = append(questionViews, fiber.Map{
			"id":             strconv.Itoa(i),
			"text":           q.Text,
			"options":        q.Options,
			"selectedAnswer": selected,
		})
	}

	instructions := []string(test.Instructions)
	if len(instructions) == 0 {
		instructions = defaultInstructions(len(questions), test.DurationMinutes)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"attempt": fiber.Map{
			"id":                   attempt.ID,
			"testId":               attempt.TestID,
			"testTitle":            test.Title,
			"durationMinutes":      test.DurationMinutes,
			"startedAt":            attempt.StartedAt,
			"submittedAt":          attempt.SubmittedAt,
			"score":                attempt.Score,
			"percentage":           attempt.Percentage,
			"totalQuestions":       len(questions),
			"markedQuestions":      attempt.MarkedQuestions,
			"currentQuestionIndex": attempt.CurrentQuestionIndex,
			"visitedQuestions":     attempt.VisitedQuestions,
		},
		"test": fiber.Map{
			"instructions": instructions,
		},
		"questions": questionViews,
	})
}

func UpdateAttempt(c *fiber.Ctx) error {
	attemptID, err := attemptIDFromParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid attempt ID",
		})
	}
	user := c.Locals("user").(models.User)

	var input struct {
		Answers              *map[string]int `json:"answers"`
		MarkedQuestions      *[]string       `json:"markedQuestions"`
		CurrentQuestionIndex *int            `json:"currentQuestionIndex"`
		VisitedQuestions     *[]string       `json:"visitedQuestions"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid input",
			"error":   err.Error(),
		})
	}

	attempt, err := fetchAttempt(attemptID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "Attempt not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	// Submitted attempts are immutable regardless of which fields the
	// update carries.
	if attempt.SubmittedAt != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Cannot update a submitted attempt",
		})
	}

	var questionCount int
	err = util.DB.QueryRow("SELECT COUNT(*) FROM test_questions WHERE test_id = $1", attempt.TestID).Scan(&questionCount)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	// Answers are replaced wholesale: last write wins per update call.
	if input.Answers != nil {
		attempt.Answers = *input.Answers
	}
	if input.MarkedQuestions != nil {
		attempt.MarkedQuestions = *input.MarkedQuestions
	}
	if input.CurrentQuestionIndex != nil {
		attempt.CurrentQuestionIndex = clampIndex(*input.CurrentQuestionIndex, questionCount)
		// Navigating to a question counts as visiting it.
		attempt.VisitedQuestions = unionVisited(attempt.VisitedQuestions, []string{strconv.Itoa(attempt.CurrentQuestionIndex)})
	}
	if input.VisitedQuestions != nil {
		attempt.VisitedQuestions = unionVisited(attempt.VisitedQuestions, *input.VisitedQuestions)
	}

	answersJSON, err := json.Marshal(attempt.Answers)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	res, err := util.DB.Exec(`
		UPDATE attempts
		SET answers = $1, marked_questions = $2, current_question_index = $3,
		    visited_questions = $4, updated_at = $5
		WHERE id = $6 AND submitted_at IS NULL
	`, answersJSON, pq.Array(attempt.MarkedQuestions), attempt.CurrentQuestionIndex,
		pq.Array(attempt.VisitedQuestions), time.Now(), attempt.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to update attempt",
			"error":   err.Error(),
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// A submit raced in between the read and this write.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Cannot update a submitted attempt",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Attempt updated successfully",
		"attempt": fiber.Map{
			"attemptId":            attempt.ID,
			"answers":              attempt.Answers,
			"markedQuestions":      attempt.MarkedQuestions,
			"currentQuestionIndex": attempt.CurrentQuestionIndex,
			"visitedQuestions":     attempt.VisitedQuestions,
		},
	})
}

func StartAttempt(c *fiber.Ctx) error {
	attemptID, err := attemptIDFromParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid attempt ID",
		})
	}
	user := c.Locals("user").(models.User)

	attempt, err := fetchAttempt(attemptID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "Attempt not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	if attempt.SubmittedAt != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Cannot start a submitted attempt",
		})
	}

	// Only the first start sets the clock; repeats return the original.
	if attempt.StartedAt == nil {
		now := time.Now()
		_, err = util.DB.Exec(`
			UPDATE attempts SET started_at = $1, updated_at = $1
			WHERE id = $2 AND started_at IS NULL
		`, now, attempt.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Failed to start attempt",
				"error":   err.Error(),
			})
		}
		attempt.StartedAt = &now
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "success",
		"message":   "Attempt started successfully",
		"startedAt": attempt.StartedAt,
	})
}

func SubmitAttempt(c *fiber.Ctx) error {
	attemptID, err := attemptIDFromParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid attempt ID",
		})
	}
	user := c.Locals("user").(models.User)

	attempt, err := fetchAttempt(attemptID, user.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "Attempt not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	if attempt.SubmittedAt != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Attempt already submitted",
		})
	}

	questions, err := fetchTestQuestions(attempt.TestID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to fetch questions",
			"error":   err.Error(),
		})
	}
	correctOptions := make([]int, len(questions))
	for i, q := range questions {
		correctOptions[i] = q.CorrectOption
	}

	score := scoreAnswers(attempt.Answers, correctOptions)
	percentage := computePercentage(score, len(questions))
	submittedAt := time.Now()

	// Conditional on the attempt still being open: a racing double
	// submit loses here instead of re-stamping the result.
	res, err := util.DB.Exec(`
		UPDATE attempts
		SET score = $1, percentage = $2, submitted_at = $3, updated_at = $3
		WHERE id = $4 AND submitted_at IS NULL
	`, score, percentage, submittedAt, attempt.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to submit attempt",
			"error":   err.Error(),
		})
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Attempt already submitted",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Attempt submitted successfully",
		"result": fiber.Map{
			"attemptId":      attempt.ID,
			"score":          score,
			"totalQuestions": len(questions),
			"percentage":     percentage,
			"submittedAt":    submittedAt,
		},
	})
}

func GetUserAttempts(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	rows, err := util.DB.Query(`
		SELECT a.id, a.test_id, t.title, a.started_at, a.submitted_at, a.score, a.percentage,
		       (SELECT COUNT(*) FROM test_questions q WHERE q.test_id = a.test_id)
		FROM attempts a
		JOIN tests t ON t.id = a.test_id
		WHERE a.user_id = $1
		ORDER BY a.submitted_at DESC NULLS LAST, a.created_at DESC
	`, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to fetch attempts",
			"error":   err.Error(),
		})
	}
	defer rows.Close()

	attempts := []fiber.Map{}
	for rows.Next() {
		var a models.Attempt
		var title string
		var totalQuestions int
		if err := rows.Scan(&a.ID, &a.TestID, &title, &a.StartedAt, &a.SubmittedAt,
			&a.Score, &a.Percentage, &totalQuestions); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error",
				"error":  err.Error(),
			})
		}
		attempts = append(attempts, fiber.Map{
			"attemptId":      a.ID,
			"testId":         a.TestID,
			"testTitle":      title,
			"startedAt":      a.StartedAt,
			"submittedAt":    a.SubmittedAt,
			"score":          a.Score,
			"percentage":     a.Percentage,
			"totalQuestions": totalQuestions,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":   "success",
		"count":    len(attempts),
		"attempts": attempts,
	})
}
