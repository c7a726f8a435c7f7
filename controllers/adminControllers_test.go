package controllers

import (
	"testing"

	"github.com/examsetu/examsetu_backend/models"
	"github.com/stretchr/testify/assert"
)

func baseTest() models.Test {
	description := "Forty polity questions"
	return models.Test{
		ID:              1,
		TestID:          "polity-mock-1",
		Title:           "Polity Mock 1",
		Description:     &description,
		Category:        "polity",
		DurationMinutes: 60,
		Price:           99,
		IsActive:        true,
	}
}

func TestApplyTestInput(t *testing.T) {
	t.Run("empty input changes nothing", func(t *testing.T) {
		test := baseTest()
		applyTestInput(&test, testInput{})
		assert.Equal(t, baseTest(), test)
	})

	t.Run("omitted price keeps the paid price", func(t *testing.T) {
		test := baseTest()
		applyTestInput(&test, testInput{Title: "Polity Mock 1 (revised)"})
		assert.Equal(t, "Polity Mock 1 (revised)", test.Title)
		assert.Equal(t, 99.0, test.Price)
	})

	t.Run("explicit zero price makes the test free", func(t *testing.T) {
		test := baseTest()
		price := 0.0
		applyTestInput(&test, testInput{Price: &price})
		assert.Equal(t, 0.0, test.Price)
	})

	t.Run("explicit price overrides", func(t *testing.T) {
		test := baseTest()
		price := 149.0
		applyTestInput(&test, testInput{Price: &price})
		assert.Equal(t, 149.0, test.Price)
	})

	t.Run("deactivation applies only when set", func(t *testing.T) {
		test := baseTest()
		applyTestInput(&test, testInput{})
		assert.True(t, test.IsActive)

		inactive := false
		applyTestInput(&test, testInput{IsActive: &inactive})
		assert.False(t, test.IsActive)
	})

	t.Run("highlights and instructions are sanitized on merge", func(t *testing.T) {
		test := baseTest()
		applyTestInput(&test, testInput{
			Highlights:   []models.Highlight{{Title: "Timed", Description: "60 minutes"}, {Title: " "}},
			Instructions: []string{"Read carefully.", "  "},
		})
		assert.Len(t, test.Highlights, 1)
		assert.Equal(t, []string{"Read carefully."}, []string(test.Instructions))
	})
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		name    string
		pageStr string
		limit   string
		page    int
		size    int
		offset  int
	}{
		{name: "defaults", pageStr: "1", limit: "20", page: 1, size: 20, offset: 0},
		{name: "second page", pageStr: "2", limit: "20", page: 2, size: 20, offset: 20},
		{name: "page zero clamps", pageStr: "0", limit: "20", page: 1, size: 20, offset: 0},
		{name: "negative page clamps", pageStr: "-3", limit: "20", page: 1, size: 20, offset: 0},
		{name: "negative limit clamps", pageStr: "2", limit: "-5", page: 2, size: 20, offset: 20},
		{name: "garbage input clamps", pageStr: "abc", limit: "xyz", page: 1, size: 20, offset: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, limit, offset := pageWindow(tc.pageStr, tc.limit)
			assert.Equal(t, tc.page, page)
			assert.Equal(t, tc.size, limit)
			assert.Equal(t, tc.offset, offset)
		})
	}
}

func TestSanitizeHighlights(t *testing.T) {
	input := []models.Highlight{
		{Title: "Timed Practice", Description: "60-minute timer", Icon: "⏰"},
		{Title: "", Description: "orphan description"},
		{Title: "orphan title", Description: "   "},
		{Title: " ", Description: " "},
	}

	out := sanitizeHighlights(input)
	assert.Len(t, out, 1)
	assert.Equal(t, "Timed Practice", out[0].Title)
}

func TestSanitizeHighlightsEmpty(t *testing.T) {
	assert.Empty(t, sanitizeHighlights(nil))
	assert.NotNil(t, sanitizeHighlights(nil))
}

func TestSanitizeInstructions(t *testing.T) {
	out := sanitizeInstructions([]string{"Read carefully.", "  ", "", "No retakes."})
	assert.Equal(t, []string{"Read carefully.", "No retakes."}, out)
}
