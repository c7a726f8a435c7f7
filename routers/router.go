package routers

import (
	"github.com/examsetu/examsetu_backend/controllers"
	"github.com/examsetu/examsetu_backend/middlewares"
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(app *fiber.App) {

	api := app.Group("/api")
	api.Get("/", controllers.Index)

	//Auth
	auth := api.Group("/auth")
	auth.Post("/register", controllers.RegisterUser)
	auth.Post("/login", controllers.LoginUser)
	auth.Get("/me", middlewares.Protected(), controllers.GetMe)
	auth.Get("/google", controllers.GoogleLogin)
	auth.Get("/google/callback", controllers.GoogleCallback)

	//Catalog. Anonymous callers see the listing without purchase flags.
	tests := api.Group("/tests")
	tests.Get("/", middlewares.OptionalAuth(), controllers.GetTests)
	tests.Get("/:id", middlewares.OptionalAuth(), controllers.GetTestByID)

	//Attempts. The leaderboard route must be registered before /:id.
	attempts := api.Group("/attempts", middlewares.Protected())
	attempts.Post("/", controllers.CreateAttempt)
	attempts.Get("/", controllers.GetUserAttempts)
	attempts.Get("/leaderboard", controllers.GetLeaderboard)
	attempts.Get("/:id", controllers.GetAttempt)
	attempts.Put("/:id", controllers.UpdateAttempt)
	attempts.Post("/:id/start", controllers.StartAttempt)
	attempts.Post("/:id/submit", controllers.SubmitAttempt)

	//Purchases. The webhook is authenticated by signature, not by JWT.
	purchases := api.Group("/purchases")
	purchases.Post("/payment-webhook", controllers.PaymentWebhook)
	purchases.Post("/create-order", middlewares.Protected(), controllers.CreatePaymentOrder)
	purchases.Post("/verify-payment", middlewares.Protected(), controllers.VerifyPayment)
	purchases.Post("/", middlewares.Protected(), controllers.PurchaseTests)
	purchases.Get("/", middlewares.Protected(), controllers.GetPurchasedTests)
	purchases.Get("/check/:testId", middlewares.Protected(), controllers.CheckPurchase)

	performance := api.Group("/performance")
	performance.Get("/", middlewares.Protected(), controllers.GetPerformance)

	//Admin
	admin := api.Group("/admin", middlewares.Protected())
	admin.Post("/tests", controllers.CreateTest)
	admin.Get("/tests", controllers.GetAllTestsAdmin)
	admin.Get("/tests/:id", controllers.GetTestAdmin)
	admin.Put("/tests/:id", controllers.UpdateTest)
	admin.Delete("/tests/:id", controllers.DeleteTest)
	admin.Get("/stats", controllers.GetAdminStats)
	admin.Get("/attempts", controllers.GetAllAttemptsAdmin)

	app.Use(middlewares.NotFound)
}
