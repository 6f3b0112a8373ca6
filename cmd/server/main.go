package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeduel/internal/aiopponent"
	"codeduel/internal/antidupe"
	"codeduel/internal/auth"
	"codeduel/internal/config"
	"codeduel/internal/database"
	"codeduel/internal/duelengine"
	"codeduel/internal/eventfabric"
	"codeduel/internal/handlers"
	"codeduel/internal/judge"
	"codeduel/internal/problemgen"
	"codeduel/internal/ratelimit"
	"codeduel/internal/rating"
	"codeduel/internal/repository"
	"codeduel/internal/sweeper"
	"codeduel/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	auth.InitJWT(cfg.App.JWTSecret)

	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := repository.New(database.GetDB())

	j := judge.New("")
	gen := problemgen.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, j)
	antidupeIdx := antidupe.New(repo, gen, antidupe.Config{
		TTL:      time.Duration(cfg.Duel.ProblemTTLDays) * 24 * time.Hour,
		MaxReuse: cfg.Duel.ProblemMaxReuse,
	})
	ratingSvc := rating.New(repo, cfg.Duel.EloKFactor)
	fabric := eventfabric.New(cfg.Duel.CodeUpdateDebounce)
	ai := aiopponent.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	engine := duelengine.New(repo, antidupeIdx, j, ratingSvc, fabric, ai, cfg.Duel)

	sw := sweeper.New(repo, fabric, engine, cfg.Duel)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sw.Start(sweepCtx)
	defer stopSweep()

	submissionLimiter := ratelimit.New(cfg.Duel.SubmissionRateLimit, cfg.Duel.SubmissionRateWindow)

	gateway := ws.New(repo, fabric, engine, cfg.Duel)
	duelHandler := handlers.NewDuelHandler(engine, repo, submissionLimiter)
	statsHandler := handlers.NewStatsHandler(repo)

	router := gin.Default()

	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		if strings.HasPrefix(frontendURL, "http://") || strings.HasPrefix(frontendURL, "https://") {
			allowedOrigins = append(allowedOrigins, frontendURL)
		} else {
			log.Printf("Warning: FRONTEND_URL '%s' does not have http:// or https:// prefix, skipping", frontendURL)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public leaderboard, no auth required.
	router.GET("/public/duels/leaderboard", statsHandler.GetLeaderboard)

	// Streaming channel, auth carried via ?token= since the WS handshake
	// has no Authorization header.
	router.GET("/duels/ws/:duelId", gateway.Handle)

	duels := router.Group("/duels")
	duels.Use(auth.AuthMiddleware())
	{
		duels.POST("/create", duelHandler.CreateDuel)
		duels.POST("/ai-duel", duelHandler.CreateAIDuel)
		duels.POST("/join", duelHandler.JoinDuel)
		duels.POST("/cancel", duelHandler.CancelDuel)
		duels.GET("/active", duelHandler.GetActiveDuel)
		duels.GET("/active-or-waiting", duelHandler.GetActiveOrWaitingDuel)
		duels.GET("/stats/me", statsHandler.GetMyStats)
		duels.GET("/leaderboard", statsHandler.GetLeaderboard)
		duels.GET("/history", statsHandler.GetHistory)
		duels.GET("/:id", duelHandler.GetDuel)
		duels.POST("/:id/submit", duelHandler.SubmitCode)
		duels.POST("/:id/test-code", duelHandler.TestCode)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
