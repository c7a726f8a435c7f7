package controllers

import (
	"fmt"
	"github.com/examsetu/examsetu_backend/models"
	"github.com/examsetu/examsetu_backend/util"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"strconv"
	"strings"
	"time"
)

type purchasableTest struct {
	ID    int
	Title string
	Price float64
}

// splitOwnedTests partitions the cart into tests the user already holds
// with success status and tests still to be bought, and totals the
// price of the remainder.
func splitOwnedTests(tests []purchasableTest, owned map[int]bool) (remaining []purchasableTest, total float64) {
	for _, t := range tests {
		if owned[t.ID] {
			continue
		}
		remaining = append(remaining, t)
		total += t.Price
	}
	return remaining, total
}

func generateOrderID(userID int) string {
	return fmt.Sprintf("ORDER_%d_%d_%s", time.Now().UnixMilli(), userID, strings.Split(uuid.NewString(), "-")[0])
}

func fetchCartTests(testIDs []int) ([]purchasableTest, error) {
	rows, err := util.DB.Query(`
		SELECT id, title, price FROM tests WHERE id = ANY($1) AND is_active = true
	`, pq.Array(testIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []purchasableTest
	for rows.Next() {
		var t purchasableTest
		if err := rows.Scan(&t.ID, &t.Title, &t.Price); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func fetchOwnedTestIDs(userID int, testIDs []int) (map[int]bool, error) {
	rows, err := util.DB.Query(`
		SELECT test_id FROM purchases
		WHERE user_id = $1 AND test_id = ANY($2) AND payment_status = 'success'
	`, userID, pq.Array(testIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owned := map[int]bool{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owned[id] = true
	}
	return owned, rows.Err()
}

// grantFreeTests writes success rows directly; free checkouts never
// touch the gateway.
func grantFreeTests(userID int, tests []purchasableTest) ([]fiber.Map, error) {
	tx, err := util.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	granted := []fiber.Map{}
	for _, t := range tests {
		var id int
		var purchasedAt time.Time
		err = tx.QueryRow(`
			INSERT INTO purchases (user_id, test_id, amount, payment_status, purchased_at)
			VALUES ($1, $2, 0, 'success', $3)
			RETURNING id, purchased_at
		`, userID, t.ID, time.Now()).Scan(&id, &purchasedAt)
		if err != nil {
			return nil, err
		}
		granted = append(granted, fiber.Map{
			"id":          id,
			"testId":      t.ID,
			"purchasedAt": purchasedAt,
		})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return granted, nil
}

func parseCart(c *fiber.Ctx) ([]int, error) {
	var input struct {
		TestIDs []int `json:"testIds"`
	}
	if err := c.BodyParser(&input); err != nil {
		return nil, err
	}
	if len(input.TestIDs) == 0 {
		return nil, fmt.Errorf("at least one test ID is required")
	}
	return input.TestIDs, nil
}

func CreatePaymentOrder(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	testIDs, err := parseCart(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Please provide test IDs",
			"error":   err.Error(),
		})
	}

	tests, err := fetchCartTests(testIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	if len(tests) != len(testIDs) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "One or more tests not found",
		})
	}

	owned, err := fetchOwnedTestIDs(user.ID, testIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	remaining, total := splitOwnedTests(tests, owned)
	if len(remaining) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "All selected tests are already purchased",
		})
	}

	if total == 0 {
		granted, err := grantFreeTests(user.ID, remaining)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Failed to record purchases",
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status":    "success",
			"count":     len(granted),
			"message":   fmt.Sprintf("Successfully purchased %d test(s)", len(granted)),
			"purchases": granted,
		})
	}

	orderID := generateOrderID(user.ID)

	sessionID, err := util.CreateCashfreeOrder(util.Cashfree, util.CashfreeOrderRequest{
		OrderID:       orderID,
		OrderAmount:   total,
		OrderCurrency: "INR",
		CustomerDetails: util.CashfreeCustomer{
			CustomerID:    strconv.Itoa(user.ID),
			CustomerName:  user.Name,
			CustomerEmail: user.Email,
			CustomerPhone: "9999999999",
		},
		OrderMeta: util.CashfreeOrderMeta{
			ReturnURL: util.FrontendURL + "/payment/success?order_id={order_id}",
			NotifyURL: util.BackendURL + "/api/purchases/payment-webhook",
		},
		OrderNote: fmt.Sprintf("Purchase of %d mock test(s)", len(remaining)),
	})
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to create payment order",
			"error":   err.Error(),
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

	remainingIDs := make([]int, 0, len(remaining))
	for _, t := range remaining {
		_, err = tx.Exec(`
			INSERT INTO purchases (user_id, test_id, order_id, amount, payment_status)
			VALUES ($1, $2, $3, $4, 'pending')
		`, user.ID, t.ID, orderID, t.Price)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Failed to record pending purchases",
				"error":   err.Error(),
			})
		}
		remainingIDs = append(remainingIDs, t.ID)
	}
	if err := tx.Commit(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to commit transaction",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"order": fiber.Map{
			"paymentSessionId": sessionID,
			"orderId":          orderID,
			"amount":           total,
			"testIds":          remainingIDs,
		},
	})
}

// gatewayTransition maps a gateway order status to the purchase state
// it justifies. Non-terminal statuses (ACTIVE while checkout is still
// underway, PENDING) justify no transition at all: the rows stay
// pending for whichever of the poll or webhook sees a terminal status
// first.
func gatewayTransition(orderStatus string) (string, bool) {
	switch strings.ToLower(orderStatus) {
	case "paid":
		return models.PaymentSuccess, true
	case "failed", "expired", "terminated", "cancelled", "user_dropped":
		return models.PaymentFailed, true
	}
	return "", false
}

// resolveOrder moves an order's pending rows to a terminal state. The
// transition is conditional on payment_status = 'pending', so replays
// and the webhook/poll race settle as no-ops: purchased_at is stamped
// at most once.
func resolveOrder(orderID, status string, paymentID *string) (int64, error) {
	if status == models.PaymentSuccess {
		res, err := util.DB.Exec(`
			UPDATE purchases
			SET payment_status = 'success', payment_id = $2, purchased_at = $3
			WHERE order_id = $1 AND payment_status = 'pending'
		`, orderID, paymentID, time.Now())
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}
	res, err := util.DB.Exec(`
		UPDATE purchases
		SET payment_status = 'failed', payment_id = $2
		WHERE order_id = $1 AND payment_status = 'pending'
	`, orderID, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func VerifyPayment(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	var input struct {
		OrderID string `json:"orderId"`
	}
	if err := c.BodyParser(&input); err != nil || input.OrderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Order ID is required",
		})
	}

	var pending, resolved int
	err := util.DB.QueryRow(`
		SELECT COUNT(*) FILTER (WHERE payment_status = 'pending'),
		       COUNT(*) FILTER (WHERE payment_status <> 'pending')
		FROM purchases WHERE order_id = $1 AND user_id = $2
	`, input.OrderID, user.ID).Scan(&pending, &resolved)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	if pending == 0 {
		// The webhook may have resolved the order before this poll;
		// reprocessing a settled order is not an error.
		if resolved > 0 {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"status":  "success",
				"message": "Order already processed",
				"orderId": input.OrderID,
			})
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Order not found",
		})
	}

	orderStatus, err := util.GetCashfreeOrderStatus(util.Cashfree, input.OrderID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to verify payment",
			"error":   err.Error(),
		})
	}

	var paymentID *string
	if orderStatus.PaymentDetails.PaymentID != "" {
		paymentID = &orderStatus.PaymentDetails.PaymentID
	}

	transition, terminal := gatewayTransition(orderStatus.OrderStatus)
	if !terminal {
		// Checkout is still underway at the gateway; the rows must stay
		// pending so a later poll or webhook can still grant them.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Payment not completed",
			"order": fiber.Map{
				"orderId": input.OrderID,
				"status":  strings.ToLower(orderStatus.OrderStatus),
			},
		})
	}

	if _, err := resolveOrder(input.OrderID, transition, paymentID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	if transition == models.PaymentSuccess {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "success",
			"message": "Payment verified successfully",
			"order": fiber.Map{
				"orderId":   input.OrderID,
				"paymentId": paymentID,
				"status":    models.PaymentSuccess,
			},
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"status":  "error",
		"message": "Payment failed",
		"order": fiber.Map{
			"orderId": input.OrderID,
			"status":  models.PaymentFailed,
		},
	})
}

func PaymentWebhook(c *fiber.Ctx) error {
	// The gateway signs webhooks; an unsigned or tampered payload is
	// rejected instead of trusting the body's order status.
	if util.Cashfree.WebhookSecret != "" {
		signature := c.Get("x-webhook-signature")
		timestamp := c.Get("x-webhook-timestamp")
		if !util.VerifyWebhookSignature(util.Cashfree, timestamp, c.Body(), signature) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid webhook signature",
			})
		}
	}

	var input struct {
		OrderID     string `json:"orderId"`
		OrderStatus string `json:"orderStatus"`
		PaymentID   string `json:"paymentId"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid webhook payload",
		})
	}
	if input.OrderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Order ID is required",
		})
	}

	var paymentID *string
	if input.PaymentID != "" {
		paymentID = &input.PaymentID
	}

	var updated int64
	if transition, terminal := gatewayTransition(input.OrderStatus); terminal {
		var err error
		updated, err = resolveOrder(input.OrderID, transition, paymentID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Webhook processing failed",
				"error":   err.Error(),
			})
		}
	}

	if updated == 0 {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "success",
			"message": "Order already processed",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Webhook processed",
	})
}

// PurchaseTests is the direct checkout path for free tests only; paid
// carts must go through the payment gateway.
func PurchaseTests(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	testIDs, err := parseCart(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Please provide test IDs",
			"error":   err.Error(),
		})
	}

	tests, err := fetchCartTests(testIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	if len(tests) != len(testIDs) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "One or more tests not found",
		})
	}

	var total float64
	for _, t := range tests {
		total += t.Price
	}
	if total > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Please use payment gateway for paid tests",
		})
	}

	owned, err := fetchOwnedTestIDs(user.ID, testIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}
	remaining, _ := splitOwnedTests(tests, owned)
	if len(remaining) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "All selected tests are already purchased",
		})
	}

	granted, err := grantFreeTests(user.ID, remaining)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to record purchases",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":    "success",
		"count":     len(granted),
		"message":   fmt.Sprintf("Successfully purchased %d test(s)", len(granted)),
		"purchases": granted,
	})
}

func GetPurchasedTests(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	rows, err := util.DB.Query(`
		SELECT t.id, t.title, t.description, t.category, t.duration_minutes, t.price,
		       (SELECT COUNT(*) FROM test_questions q WHERE q.test_id = t.id),
		       p.purchased_at
		FROM purchases p
		JOIN tests t ON t.id = p.test_id
		WHERE p.user_id = $1 AND p.payment_status = 'success'
		ORDER BY p.purchased_at DESC
	`, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to fetch purchases",
			"error":   err.Error(),
		})
	}
	defer rows.Close()

	tests := []fiber.Map{}
	for rows.Next() {
		var id, durationMinutes, totalQuestions int
		var title, category string
		var description *string
		var price float64
		var purchasedAt *time.Time
		if err := rows.Scan(&id, &title, &description, &category, &durationMinutes,
			&price, &totalQuestions, &purchasedAt); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error",
				"error":  err.Error(),
			})
		}
		tests = append(tests, fiber.Map{
			"id":              id,
			"title":           title,
			"description":     description,
			"category":        category,
			"durationMinutes": durationMinutes,
			"price":           price,
			"totalQuestions":  totalQuestions,
			"purchasedAt":     purchasedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"count":  len(tests),
		"tests":  tests,
	})
}

func CheckPurchase(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)

	testID, err := strconv.Atoi(c.Params("testId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid test ID",
		})
	}

	purchased, err := hasSuccessPurchase(user.ID, testID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":      "success",
		"isPurchased": purchased,
	})
}
