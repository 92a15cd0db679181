package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/example/eventhub/internal/config"
	"github.com/example/eventhub/internal/handlers"
	"github.com/example/eventhub/internal/middleware"
	"github.com/example/eventhub/internal/services"
)

// NewApp builds the fiber app with the shared middleware stack and all routes.
func NewApp(db *gorm.DB, cfg *config.Config, paymentOpts ...services.PaymentOption) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Eventhub Backend",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Authorization",
	}))

	Register(app, db, cfg, paymentOpts...)
	return app
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, paymentOpts ...services.PaymentOption) {
	paymentService := services.NewPaymentService(db, cfg.ReceiptBaseURL, paymentOpts...)

	authHandler := handlers.NewAuthHandler(db, cfg)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	eventHandler := handlers.NewEventHandler(services.NewEventService(db))
	bookingHandler := handlers.NewBookingHandler(services.NewBookingService(db))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	requireAuth := middleware.AuthMiddleware(cfg.JWTSecret)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.SanitizeInput("password"), authHandler.Register)
	auth.Post("/login", middleware.SanitizeInput("password"), authHandler.Login)
	auth.Get("/me", requireAuth, authHandler.Me)

	// Payments
	payments := api.Group("/payments", requireAuth)
	payments.Post("/", paymentHandler.ProcessPayment)
	payments.Get("/", paymentHandler.GetPaymentHistory)
	payments.Get("/:id", paymentHandler.GetPaymentDetails)

	// Events
	events := api.Group("/events", requireAuth)
	events.Get("/", eventHandler.ListEvents)
	events.Get("/:id", eventHandler.GetEvent)
	events.Post("/", middleware.IsOrganizer(), middleware.SanitizeInput(), eventHandler.CreateEvent)
	events.Delete("/:id", middleware.IsOrganizer(), eventHandler.DeleteEvent)
	events.Get("/:id/bookings", middleware.IsOrganizer(), eventHandler.ListEventBookings)

	// Vendor bookings
	bookings := api.Group("/bookings", requireAuth, middleware.IsVendor())
	bookings.Post("/", middleware.SanitizeInput(), bookingHandler.CreateBooking)
	bookings.Get("/", bookingHandler.ListBookings)
	bookings.Delete("/:id", bookingHandler.CancelBooking)

	// Admin
	admin := api.Group("/admin", requireAuth, middleware.IsAdmin())
	admin.Get("/payments", paymentHandler.ListAllPayments)
}
