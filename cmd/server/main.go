package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/unfoldmono/realza/internal/allocation"
	"github.com/unfoldmono/realza/internal/config"
	"github.com/unfoldmono/realza/internal/database"
	"github.com/unfoldmono/realza/internal/handler"
	"github.com/unfoldmono/realza/internal/middleware"
	"github.com/unfoldmono/realza/internal/queue"
	"github.com/unfoldmono/realza/internal/repository"
	"github.com/unfoldmono/realza/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories share the one pool.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	listings := repository.NewListingRepo(db)
	showings := repository.NewShowingRepo(db)
	bids := repository.NewShowingBidRepo(db)

	engine := allocation.New(repository.NewAllocationStore(db))
	engine.Loc = cfg.Location()

	// Redis is optional; a nil client disables caching and rate limits.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: response cache and rate limiting disabled")
	}
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limitMW := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// Consume showing.assigned events in the background.
	go func() {
		if err := queue.StartAssignedConsumer(); err != nil {
			log.Printf("assigned consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.Use(limitMW)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(listings, engine), cacheMW)
	router.RegisterAgent(e, handler.NewAgentHandler(engine, users, listings, showings, bids), cfg.JWTSecret)
	router.RegisterSeller(e, handler.NewSellerHandler(engine, listings, showings),
		handler.NewSellerListingHandler(listings), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
