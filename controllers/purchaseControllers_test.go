package controllers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitOwnedTests(t *testing.T) {
	tests := []purchasableTest{
		{ID: 1, Title: "SSC CGL Mock 1", Price: 99},
		{ID: 2, Title: "SSC CGL Mock 2", Price: 0},
		{ID: 3, Title: "Banking Mock 1", Price: 149},
	}

	t.Run("filters owned and totals the rest", func(t *testing.T) {
		remaining, total := splitOwnedTests(tests, map[int]bool{1: true})
		assert.Len(t, remaining, 2)
		assert.Equal(t, 2, remaining[0].ID)
		assert.Equal(t, 3, remaining[1].ID)
		assert.Equal(t, 149.0, total)
	})

	t.Run("nothing owned", func(t *testing.T) {
		remaining, total := splitOwnedTests(tests, map[int]bool{})
		assert.Len(t, remaining, 3)
		assert.Equal(t, 248.0, total)
	})

	t.Run("everything owned", func(t *testing.T) {
		remaining, total := splitOwnedTests(tests, map[int]bool{1: true, 2: true, 3: true})
		assert.Empty(t, remaining)
		assert.Equal(t, 0.0, total)
	})

	t.Run("free tests total zero", func(t *testing.T) {
		_, total := splitOwnedTests([]purchasableTest{{ID: 2, Price: 0}}, nil)
		assert.Equal(t, 0.0, total)
	})
}

func TestGatewayTransition(t *testing.T) {
	tests := []struct {
		name        string
		orderStatus string
		transition  string
		terminal    bool
	}{
		{name: "paid upper case", orderStatus: "PAID", transition: "success", terminal: true},
		{name: "paid lower case", orderStatus: "paid", transition: "success", terminal: true},
		{name: "failed", orderStatus: "FAILED", transition: "failed", terminal: true},
		{name: "expired", orderStatus: "EXPIRED", transition: "failed", terminal: true},
		{name: "terminated", orderStatus: "TERMINATED", transition: "failed", terminal: true},
		{name: "user dropped", orderStatus: "USER_DROPPED", transition: "failed", terminal: true},
		{name: "active checkout stays pending", orderStatus: "ACTIVE", terminal: false},
		{name: "pending stays pending", orderStatus: "PENDING", terminal: false},
		{name: "unknown status stays pending", orderStatus: "TERMINATION_REQUESTED", terminal: false},
		{name: "empty status stays pending", orderStatus: "", terminal: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transition, terminal := gatewayTransition(tc.orderStatus)
			assert.Equal(t, tc.terminal, terminal)
			assert.Equal(t, tc.transition, transition)
		})
	}
}

func TestGenerateOrderID(t *testing.T) {
	first := generateOrderID(42)
	second := generateOrderID(42)

	assert.True(t, strings.HasPrefix(first, "ORDER_"))
	assert.NotEqual(t, first, second)

	parts := strings.Split(first, "_")
	assert.Len(t, parts, 4)
	assert.Equal(t, "42", parts[2])
}
