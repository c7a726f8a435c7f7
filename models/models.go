package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"time"
)

// User model
type User struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Password          *string   `json:"password,omitempty"`
	Role              string    `json:"role"`
	GoogleID          *string   `json:"googleId,omitempty"`
	PasswordChangedAt time.Time `json:"passwordChangedAt"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Highlight is a short selling point shown on a test's detail page.
type Highlight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Question model. Identity is positional: a question is addressed by its
// index within the owning test's question list.
type Question struct {
	Position      int            `json:"position"`
	Text          string         `json:"text"`
	Options       pq.StringArray `json:"options"`
	CorrectOption int            `json:"correctOption"`
}

// Test model
type Test struct {
	ID              int            `json:"id"`
	TestID          string         `json:"testId"`
	Title           string         `json:"title"`
	Description     *string        `json:"description"`
	Category        string         `json:"category"`
	DurationMinutes int            `json:"durationMinutes"`
	Price           float64        `json:"price"`
	Instructions    pq.StringArray `json:"instructions"`
	Highlights      []Highlight    `json:"highlights"`
	Questions       []Question     `json:"questions,omitempty"`
	IsActive        bool           `json:"isActive"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Purchase model. At most one success-status row may exist per
// (user, test) pair; pending and failed rows may repeat.
type Purchase struct {
	ID            int        `json:"id"`
	UserID        int        `json:"userId"`
	TestID        int        `json:"testId"`
	OrderID       *string    `json:"orderId"`
	PaymentID     *string    `json:"paymentId"`
	PaymentStatus string     `json:"paymentStatus"`
	Amount        float64    `json:"amount"`
	PurchasedAt   *time.Time `json:"purchasedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Attempt model. Answers map a question index (as string) to the
// selected option index; absent keys are unanswered. An attempt with a
// nil SubmittedAt is open; once submitted it is immutable.
type Attempt struct {
	ID                   uuid.UUID      `json:"id"`
	UserID               int            `json:"userId"`
	TestID               int            `json:"testId"`
	Answers              map[string]int `json:"answers"`
	MarkedQuestions      pq.StringArray `json:"markedQuestions"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	VisitedQuestions     pq.StringArray `json:"visitedQuestions"`
	StartedAt            *time.Time     `json:"startedAt"`
	SubmittedAt          *time.Time     `json:"submittedAt"`
	Score                *int           `json:"score"`
	Percentage           *int           `json:"percentage"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// Payment status values for Purchase rows.
const (
	PaymentPending   = "pending"
	PaymentSuccess   = "success"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
)

// TestCategories lists the recognized catalog categories.
var TestCategories = []string{"polity", "history", "geography", "economy", "science", "current-affairs"}
