package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreAnswers(t *testing.T) {
	key := []int{0, 1, 1, 1, 2}

	tests := []struct {
		name    string
		answers map[string]int
		want    int
	}{
		{name: "partial answers with one wrong", answers: map[string]int{"0": 0, "1": 1, "2": 0, "4": 2}, want: 3},
		{name: "all correct", answers: map[string]int{"0": 0, "1": 1, "2": 1, "3": 1, "4": 2}, want: 5},
		{name: "all wrong", answers: map[string]int{"0": 1, "1": 0, "2": 0, "3": 0, "4": 0}, want: 0},
		{name: "no answers", answers: map[string]int{}, want: 0},
		{name: "nil answers", answers: nil, want: 0},
		{name: "stray keys outside question range ignored", answers: map[string]int{"0": 0, "99": 2, "-1": 0}, want: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, scoreAnswers(tc.answers, key))
		})
	}
}

func TestComputePercentage(t *testing.T) {
	tests := []struct {
		name  string
		score int
		total int
		want  int
	}{
		{name: "three of five", score: 3, total: 5, want: 60},
		{name: "perfect", score: 10, total: 10, want: 100},
		{name: "zero score", score: 0, total: 5, want: 0},
		{name: "rounds half up", score: 1, total: 8, want: 13},
		{name: "rounds down below half", score: 1, total: 3, want: 33},
		{name: "rounds up above half", score: 2, total: 3, want: 67},
		{name: "empty test scores zero", score: 0, total: 0, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, computePercentage(tc.score, tc.total))
		})
	}
}

func TestClampIndex(t *testing.T) {
	tests := []struct {
		name  string
		index int
		count int
		want  int
	}{
		{name: "inside range", index: 3, count: 10, want: 3},
		{name: "negative clamps to zero", index: -5, count: 10, want: 0},
		{name: "past the end clamps to last", index: 10, count: 10, want: 9},
		{name: "last index allowed", index: 9, count: 10, want: 9},
		{name: "no questions", index: 4, count: 0, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, clampIndex(tc.index, tc.count))
		})
	}
}

func TestUnionVisited(t *testing.T) {
	t.Run("merges preserving first-seen order", func(t *testing.T) {
		got := unionVisited([]string{"0", "1"}, []string{"1", "2", "0", "3"})
		assert.Equal(t, []string{"0", "1", "2", "3"}, got)
	})

	t.Run("never shrinks when incoming is empty", func(t *testing.T) {
		got := unionVisited([]string{"0", "1", "2"}, nil)
		assert.Equal(t, []string{"0", "1", "2"}, got)
	})

	t.Run("deduplicates existing entries", func(t *testing.T) {
		got := unionVisited([]string{"0", "0", "1"}, []string{"1"})
		assert.Equal(t, []string{"0", "1"}, got)
	})

	t.Run("empty both sides", func(t *testing.T) {
		assert.Empty(t, unionVisited(nil, nil))
	})
}

func TestScanAnswers(t *testing.T) {
	t.Run("valid map", func(t *testing.T) {
		got, err := scanAnswers([]byte(`{"0":2,"3":1}`))
		assert.NoError(t, err)
		assert.Equal(t, map[string]int{"0": 2, "3": 1}, got)
	})

	t.Run("empty column yields empty map", func(t *testing.T) {
		got, err := scanAnswers(nil)
		assert.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		_, err := scanAnswers([]byte(`{"0":`))
		assert.Error(t, err)
	})
}
