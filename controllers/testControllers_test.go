package controllers

import (
	"testing"

	"github.com/examsetu/examsetu_backend/models"
	"github.com/stretchr/testify/assert"
)

func TestValidateQuestions(t *testing.T) {
	valid := models.Question{
		Text:          "Capital of India?",
		Options:       []string{"Mumbai", "New Delhi", "Kolkata", "Chennai"},
		CorrectOption: 1,
	}

	tests := []struct {
		name      string
		questions []models.Question
		wantErr   string
	}{
		{name: "valid question", questions: []models.Question{valid}},
		{name: "no questions", questions: nil, wantErr: "at least one question"},
		{
			name: "empty text",
			questions: []models.Question{{
				Text: "  ", Options: []string{"A", "B"}, CorrectOption: 0,
			}},
			wantErr: "text is required",
		},
		{
			name: "too few options",
			questions: []models.Question{{
				Text: "Q", Options: []string{"A"}, CorrectOption: 0,
			}},
			wantErr: "between 2 and 6 options",
		},
		{
			name: "too many options",
			questions: []models.Question{{
				Text: "Q", Options: []string{"A", "B", "C", "D", "E", "F", "G"}, CorrectOption: 0,
			}},
			wantErr: "between 2 and 6 options",
		},
		{
			name: "answer index out of range",
			questions: []models.Question{{
				Text: "Q", Options: []string{"A", "B"}, CorrectOption: 2,
			}},
			wantErr: "out of range",
		},
		{
			name: "negative answer index",
			questions: []models.Question{{
				Text: "Q", Options: []string{"A", "B"}, CorrectOption: -1,
			}},
			wantErr: "out of range",
		},
		{
			name:      "second question invalid",
			questions: []models.Question{valid, {Text: "Q", Options: []string{"A"}, CorrectOption: 0}},
			wantErr:   "question 1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validateQuestions(tc.questions)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}

func TestDefaultHighlights(t *testing.T) {
	highlights := defaultHighlights(100, 60)
	assert.NotEmpty(t, highlights)
	for _, h := range highlights {
		assert.NotEmpty(t, h.Title)
		assert.NotEmpty(t, h.Description)
		assert.NotEmpty(t, h.Icon)
	}
}

func TestDefaultInstructions(t *testing.T) {
	instructions := defaultInstructions(100, 60)
	assert.NotEmpty(t, instructions)
	for _, line := range instructions {
		assert.NotEmpty(t, line)
	}
}
