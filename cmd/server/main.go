package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"coachledger/internal/handlers"
	"coachledger/internal/middleware"
	"coachledger/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis is optional. Without it dues summaries hit the database directly
	// and webhook dedup relies on the database alone.
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	} else {
		log.Println("REDIS_URL not set, running without cache")
	}

	// Services
	auditService := services.NewAuditService(db)
	receiptService := services.NewReceiptService(db)
	ledgerService := services.NewLedgerService(db, receiptService, auditService, cache)
	structureService := services.NewStructureService(db, ledgerService, auditService)
	paymentService := services.NewPaymentService(db, ledgerService, receiptService, auditService)
	gatewayClient := services.NewGatewayClient()
	gatewayService := services.NewGatewayService(db, gatewayClient, ledgerService, receiptService, auditService, cache)

	// Handlers
	structureHandler := handlers.NewStructureHandler(structureService)
	recordHandler := handlers.NewRecordHandler(ledgerService, structureService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	gatewayHandler := handlers.NewGatewayHandler(gatewayService)

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = middleware.CustomErrorHandler

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())

	// Gateway webhooks authenticate via signature, not actor headers
	e.POST("/gateway/webhook", gatewayHandler.Webhook)

	api := e.Group("/api/v1")
	api.Use(middleware.RequireActor())

	// Admin-only: fee configuration and manual ledger operations
	admin := api.Group("")
	admin.Use(middleware.RequireAdmin())

	admin.POST("/structures", structureHandler.CreateStructure)
	admin.POST("/structures/:id/supersede", structureHandler.SupersedeStructure)
	admin.POST("/assignments", structureHandler.Assign)
	admin.POST("/assignments/:id/pause", structureHandler.PauseAssignment)
	admin.POST("/assignments/:id/resume", structureHandler.ResumeAssignment)

	admin.POST("/records/generate", recordHandler.GenerateRecords)
	admin.POST("/records/:id/waive", recordHandler.WaiveRecord)
	admin.POST("/payments", paymentHandler.RecordManualPayment)
	admin.POST("/refunds", paymentHandler.RecordRefund)
	admin.POST("/gateway/refunds", gatewayHandler.InitiateRefund)

	// Member-accessible reads and checkout
	api.GET("/records", recordHandler.ListRecords)
	api.GET("/records/:id", recordHandler.GetRecord)
	api.GET("/members/:id/dues", recordHandler.MemberDuesSummary)

	api.POST("/gateway/orders", gatewayHandler.CreateOrder)
	api.POST("/gateway/orders/confirm", gatewayHandler.ConfirmPayment)
	api.GET("/gateway/orders/:ref", gatewayHandler.GetOrder)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
