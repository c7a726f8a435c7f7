package controllers

import (
	"github.com/examsetu/examsetu_backend/models"
	"github.com/examsetu/examsetu_backend/util"
	"github.com/gofiber/fiber/v2"
	"math"
	"sort"
	"strconv"
)

type submittedAttempt struct {
	UserID     int
	UserName   string
	UserEmail  string
	Category   string
	Score      int
	Percentage int
}

type leaderboardEntry struct {
	Rank              int    `json:"rank"`
	UserID            int    `json:"userId"`
	UserName          string `json:"userName"`
	UserEmail         string `json:"userEmail"`
	TotalAttempts     int    `json:"totalAttempts"`
	BestScore         int    `json:"bestScore"`
	BestPercentage    int    `json:"bestPercentage"`
	AveragePercentage int    `json:"averagePercentage"`
}

// buildLeaderboard groups submitted attempts by user and ranks them by
// best percentage, ties broken by average percentage. Best score is the
// score of the best-percentage attempt, not an independent maximum.
func buildLeaderboard(attempts []submittedAttempt) []leaderboardEntry {
	byUser := map[int]*leaderboardEntry{}
	totals := map[int]int{}
	var order []int

	for _, a := range attempts {
		entry, ok := byUser[a.UserID]
		if !ok {
			entry = &leaderboardEntry{
				UserID:    a.UserID,
				UserName:  a.UserName,
				UserEmail: a.UserEmail,
			}
			byUser[a.UserID] = entry
			order = append(order, a.UserID)
		}
		entry.TotalAttempts++
		totals[a.UserID] += a.Percentage
		if a.Percentage > entry.BestPercentage || entry.TotalAttempts == 1 {
			entry.BestPercentage = a.Percentage
			entry.BestScore = a.Score
		}
	}

	leaderboard := make([]leaderboardEntry, 0, len(order))
	for _, uid := range order {
		entry := *byUser[uid]
		entry.AveragePercentage = int(math.Round(float64(totals[uid]) / float64(entry.TotalAttempts)))
		leaderboard = append(leaderboard, entry)
	}

	sort.SliceStable(leaderboard, func(i, j int) bool {
		if leaderboard[i].BestPercentage != leaderboard[j].BestPercentage {
			return leaderboard[i].BestPercentage > leaderboard[j].BestPercentage
		}
		return leaderboard[i].AveragePercentage > leaderboard[j].AveragePercentage
	})
	for i := range leaderboard {
		leaderboard[i].Rank = i + 1
	}
	return leaderboard
}

func fetchSubmittedAttempts() ([]submittedAttempt, error) {
	rows, err := util.DB.Query(`
		SELECT a.user_id, u.name, u.email, t.category, a.score, a.percentage
		FROM attempts a
		JOIN users u ON u.id = a.user_id
		JOIN tests t ON t.id = a.test_id
		WHERE a.submitted_at IS NOT NULL AND a.score IS NOT NULL
		ORDER BY a.submitted_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []submittedAttempt
	for rows.Next() {
		var a submittedAttempt
		if err := rows.Scan(&a.UserID, &a.UserName, &a.UserEmail, &a.Category, &a.Score, &a.Percentage); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func GetLeaderboard(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if limit <= 0 {
		limit = 10
	}

	attempts, err := fetchSubmittedAttempts()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to fetch leaderboard",
			"error":   err.Error(),
		})
	}

	leaderboard := buildLeaderboard(attempts)

	topPerformers := leaderboard
	if len(topPerformers) > limit {
		topPerformers = topPerformers[:limit]
	}

	// The caller's own entry is surfaced even when it falls outside the
	// requested window; callers with no submissions get a zero entry.
	var userStats leaderboardEntry
	found := false
	for _, entry := range leaderboard {
		if entry.UserID == user.ID {
			userStats = entry
			found = true
			break
		}
	}
	if !found {
		userStats = leaderboardEntry{
			UserID:    user.ID,
			UserName:  user.Name,
			UserEmail: user.Email,
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":        "success",
		"topPerformers": topPerformers,
		"userStats":     userStats,
		"totalUsers":    len(leaderboard),
	})
}

type categoryStats struct {
	Category     string `json:"category"`
	Attempts     int    `json:"attempts"`
	AverageScore int    `json:"averageScore"`
}

// categoryPerformance averages scores per test category, in first-seen
// order over the newest-first attempt list.
func categoryPerformance(attempts []submittedAttempt) []categoryStats {
	byCategory := map[string]*categoryStats{}
	totals := map[string]int{}
	var order []string

	for _, a := range attempts {
		stats, ok := byCategory[a.Category]
		if !ok {
			stats = &categoryStats{Category: a.Category}
			byCategory[a.Category] = stats
			order = append(order, a.Category)
		}
		stats.Attempts++
		totals[a.Category] += a.Score
	}

	out := make([]categoryStats, 0, len(order))
	for _, category := range order {
		stats := *byCategory[category]
		stats.AverageScore = int(math.Round(float64(totals[category]) / float64(stats.Attempts)))
		out = append(out, stats)
	}
	return out
}

func GetPerformance(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	rows, err := util.DB.Query(`
		SELECT t.category, t.title, a.score, a.percentage, a.submitted_at
		FROM attempts a
		JOIN tests t ON t.id = a.test_id
		WHERE a.user_id = $1 AND a.submitted_at IS NOT NULL
		ORDER BY a.submitted_at DESC
	`, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to fetch performance",
			"error":   err.Error(),
		})
	}
	defer rows.Close()

	type attemptView struct {
		TestTitle   string      `json:"testTitle"`
		Score       int         `json:"score"`
		Percentage  int         `json:"percentage"`
		SubmittedAt interface{} `json:"submittedAt"`
	}

	var attempts []submittedAttempt
	var recent []attemptView
	totalScore := 0
	totalPercentage := 0
	for rows.Next() {
		var a submittedAttempt
		var view attemptView
		if err := rows.Scan(&a.Category, &view.TestTitle, &a.Score, &a.Percentage, &view.SubmittedAt); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error",
				"error":  err.Error(),
			})
		}
		view.Score = a.Score
		view.Percentage = a.Percentage
		attempts = append(attempts, a)
		if len(recent) < 5 {
			recent = append(recent, view)
		}
		totalScore += a.Score
		totalPercentage += a.Percentage
	}

	var totalPurchased int
	err = util.DB.QueryRow(`
		SELECT COUNT(*) FROM purchases WHERE user_id = $1 AND payment_status = 'success'
	`, user.ID).Scan(&totalPurchased)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	averageScore := 0
	averagePercentage := 0
	if len(attempts) > 0 {
		averageScore = int(math.Round(float64(totalScore) / float64(len(attempts))))
		averagePercentage = int(math.Round(float64(totalPercentage) / float64(len(attempts))))
	}
	if recent == nil {
		recent = []attemptView{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"overview": fiber.Map{
			"totalPurchasedTests": totalPurchased,
			"totalAttempts":       len(attempts),
			"averageScore":        averageScore,
			"averagePercentage":   averagePercentage,
		},
		"categoryPerformance": categoryPerformance(attempts),
		"recentAttempts":      recent,
	})
}
