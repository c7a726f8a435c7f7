package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildLeaderboard(t *testing.T) {
	t.Run("best percentage wins over higher average", func(t *testing.T) {
		attempts := []submittedAttempt{
			{UserID: 1, UserName: "Asha", Score: 8, Percentage: 80},
			{UserID: 1, UserName: "Asha", Score: 10, Percentage: 100},
			{UserID: 2, UserName: "Binu", Score: 9, Percentage: 90},
		}

		board := buildLeaderboard(attempts)
		assert.Len(t, board, 2)

		assert.Equal(t, 1, board[0].Rank)
		assert.Equal(t, 1, board[0].UserID)
		assert.Equal(t, 100, board[0].BestPercentage)
		assert.Equal(t, 10, board[0].BestScore)
		assert.Equal(t, 90, board[0].AveragePercentage)
		assert.Equal(t, 2, board[0].TotalAttempts)

		assert.Equal(t, 2, board[1].Rank)
		assert.Equal(t, 2, board[1].UserID)
		assert.Equal(t, 90, board[1].BestPercentage)
	})

	t.Run("average breaks best-percentage ties", func(t *testing.T) {
		attempts := []submittedAttempt{
			{UserID: 1, Score: 9, Percentage: 90},
			{UserID: 1, Score: 5, Percentage: 50},
			{UserID: 2, Score: 9, Percentage: 90},
			{UserID: 2, Score: 8, Percentage: 80},
		}

		board := buildLeaderboard(attempts)
		assert.Equal(t, 2, board[0].UserID)
		assert.Equal(t, 85, board[0].AveragePercentage)
		assert.Equal(t, 1, board[1].UserID)
		assert.Equal(t, 70, board[1].AveragePercentage)
	})

	t.Run("best score follows the best-percentage attempt", func(t *testing.T) {
		// A higher raw score on a longer test must not displace the
		// score paired with the best percentage.
		attempts := []submittedAttempt{
			{UserID: 1, Score: 40, Percentage: 40},
			{UserID: 1, Score: 9, Percentage: 90},
		}

		board := buildLeaderboard(attempts)
		assert.Equal(t, 90, board[0].BestPercentage)
		assert.Equal(t, 9, board[0].BestScore)
	})

	t.Run("single zero-percentage attempt still recorded", func(t *testing.T) {
		attempts := []submittedAttempt{
			{UserID: 7, Score: 0, Percentage: 0},
		}

		board := buildLeaderboard(attempts)
		assert.Len(t, board, 1)
		assert.Equal(t, 1, board[0].Rank)
		assert.Equal(t, 1, board[0].TotalAttempts)
		assert.Equal(t, 0, board[0].BestPercentage)
	})

	t.Run("empty input yields empty board", func(t *testing.T) {
		assert.Empty(t, buildLeaderboard(nil))
	})
}

func TestCategoryPerformance(t *testing.T) {
	attempts := []submittedAttempt{
		{Category: "polity", Score: 8},
		{Category: "history", Score: 6},
		{Category: "polity", Score: 5},
	}

	stats := categoryPerformance(attempts)
	assert.Len(t, stats, 2)

	assert.Equal(t, "polity", stats[0].Category)
	assert.Equal(t, 2, stats[0].Attempts)
	assert.Equal(t, 7, stats[0].AverageScore)

	assert.Equal(t, "history", stats[1].Category)
	assert.Equal(t, 1, stats[1].Attempts)
	assert.Equal(t, 6, stats[1].AverageScore)
}

func TestCategoryPerformanceRounding(t *testing.T) {
	attempts := []submittedAttempt{
		{Category: "geography", Score: 7},
		{Category: "geography", Score: 8},
	}

	stats := categoryPerformance(attempts)
	assert.Equal(t, 8, stats[0].AverageScore)
}
