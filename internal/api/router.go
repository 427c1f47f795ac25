package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"soomhub/market/internal/api/handlers"
	"soomhub/market/internal/api/middleware"
	"soomhub/market/internal/captcha"
	"soomhub/market/internal/email"
	"soomhub/market/internal/services"
	"soomhub/market/internal/storage"
)

// Services bundles what the HTTP handlers depend on.
type Services struct {
	Auth          services.IAuthService
	Users         services.IUserService
	Notifier      services.INotifier
	Listings      services.IListingService
	Submissions   services.ISubmissionService
	Auctions      services.IAuctionService
	PromoCodes    services.IPromoCodeService
	CardTypes     services.ICardTypeService
	BankCards     services.IBankCardService
	LicensePlates services.ILicensePlateService
	Storage       storage.IS3Storage
	Images        handlers.ImageEnqueuer
	Captcha       captcha.ITurnstileVerifier
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(svc *Services, rateLimiter *middleware.RateLimiter) *gin.Engine {
	if err := handlers.RegisterValidators(); err != nil {
		log.Fatalf("CRITICAL: Failed to register request validators: %v", err)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Users, svc.Notifier)
	userHandler := handlers.NewUserHandler(svc.Users)
	cardHandler := handlers.NewCardHandler(svc.CardTypes, svc.BankCards)
	listingHandler := handlers.NewListingHandler(svc.Listings, svc.Images)
	auctionHandler := handlers.NewAuctionHandler(svc.Auctions)
	submissionHandler := handlers.NewSubmissionHandler(svc.Submissions, svc.Listings)
	promoHandler := handlers.NewPromoCodeHandler(svc.PromoCodes)
	plateHandler := handlers.NewLicensePlateHandler(svc.LicensePlates, svc.Storage)

	requireAuth := middleware.AuthMiddleware(svc.Auth)
	limit := rateLimiter.Limit()

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Public routes
		public := v1.Group("/", limit)
		public.POST("/auth/register", middleware.CaptchaMiddleware(svc.Captcha), authHandler.Register)
		public.POST("/auth/login", authHandler.Login)
		public.POST("/auth/refresh", authHandler.Refresh)
		public.GET("/users/:id", userHandler.GetUser)
		public.GET("/card-types", cardHandler.ListCardTypes)
		public.GET("/listings", listingHandler.ListListings)
		public.GET("/listings/:id", listingHandler.GetListing)
		public.GET("/listings/slug/:slug", listingHandler.GetListingBySlug)
		public.GET("/listings/:id/auctions", auctionHandler.ListAuctions)
		public.GET("/listings/:id/license-plate", plateHandler.GetLicensePlateByListing)
		public.GET("/license-plates/:id", plateHandler.GetLicensePlate)
		public.GET("/auctions/:id", auctionHandler.GetAuction)

		// Authenticated routes. The limiter runs after auth so it keys on the user.
		authed := v1.Group("/", requireAuth, limit)
		{
			authed.POST("/auth/logout", authHandler.Logout)

			authed.GET("/users/me", userHandler.GetMe)
			authed.PUT("/users/me", userHandler.UpdateMe)
			authed.DELETE("/users/me", userHandler.DeleteMe)

			authed.GET("/bank-cards", cardHandler.ListBankCards)
			authed.POST("/bank-cards", cardHandler.CreateBankCard)
			authed.GET("/bank-cards/:id", cardHandler.GetBankCard)
			authed.PUT("/bank-cards/:id", cardHandler.UpdateBankCard)
			authed.DELETE("/bank-cards/:id", cardHandler.DeleteBankCard)

			authed.GET("/listings/mine", listingHandler.ListMyListings)
			authed.POST("/listings", listingHandler.CreateListing)
			authed.PUT("/listings/:id", listingHandler.UpdateListing)
			authed.DELETE("/listings/:id", listingHandler.DeleteListing)
			authed.POST("/listings/:id/images", listingHandler.RequestImageUpload)
			authed.POST("/listings/:id/images/confirm", listingHandler.ConfirmImageUpload)
			authed.POST("/listings/:id/license-plate", plateHandler.SaveLicensePlate)

			authed.POST("/listings/:id/auctions", auctionHandler.PlaceBid)
			authed.PUT("/auctions/:id", auctionHandler.UpdateBid)
			authed.DELETE("/auctions/:id", auctionHandler.DeleteBid)
			authed.POST("/auctions/:id/validate", auctionHandler.ValidateAuction)

			authed.POST("/listings/:id/submissions", submissionHandler.CreateSubmission)
			authed.GET("/listings/:id/submissions", submissionHandler.ListListingSubmissions)
			authed.GET("/submissions/mine", submissionHandler.ListMySubmissions)
			authed.GET("/submissions/:id", submissionHandler.GetSubmission)
			authed.POST("/submissions/:id/respond", submissionHandler.RespondToSubmission)
			authed.GET("/submissions/:id/responses", submissionHandler.ListResponses)
			authed.POST("/submissions/:id/negotiations", submissionHandler.CounterOffer)
			authed.GET("/submissions/:id/negotiations", submissionHandler.ListNegotiations)
			authed.POST("/submissions/:id/validate", submissionHandler.ValidateSale)
			authed.POST("/negotiations/:id/respond", submissionHandler.RespondToNegotiation)

			authed.GET("/promo-codes/:code", promoHandler.CheckPromoCode)
			authed.POST("/promo-codes/:code/redeem", promoHandler.RedeemPromoCode)
		}

		// Admin routes
		admin := v1.Group("/", requireAuth, middleware.AdminMiddleware(), limit)
		{
			admin.GET("/users", userHandler.ListUsers)
			admin.DELETE("/users/:id", userHandler.DeleteUser)

			admin.GET("/admin/card-types", cardHandler.AdminListCardTypes)
			admin.POST("/admin/card-types", cardHandler.CreateCardType)
			admin.PUT("/admin/card-types/:id", cardHandler.UpdateCardType)
			admin.DELETE("/admin/card-types/:id", cardHandler.DeleteCardType)

			admin.GET("/admin/submissions", submissionHandler.AdminListSubmissions)

			admin.GET("/admin/promo-codes", promoHandler.ListPromoCodes)
			admin.POST("/admin/promo-codes", promoHandler.CreatePromoCode)
			admin.DELETE("/admin/promo-codes/:code", promoHandler.DeactivatePromoCode)
		}
	}

	return r
}

// SetupServiceRouter configures the internal service engine. It accepts "shutdown"
// and, for integration tests, "getTestEmail" which reads back a mock email from Redis.
func SetupServiceRouter(rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled.")
			}
		case "getTestEmail":
			var args []string // [templateID, email]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [templateID, email]"})
				return
			}
			emailData, err := readTestEmail(c.Request.Context(), rdb, email.MockEmailKey(args[1], args[0]))
			if err != nil {
				if errors.Is(err, redis.Nil) {
					c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email %s for %s not found", args[0], args[1])})
					return
				}
				log.Printf("Service API: error reading test email: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// readTestEmail takes the stored mock email at key and decodes it.
func readTestEmail(ctx context.Context, rdb *redis.Client, key string) (map[string]any, error) {
	raw, err := rdb.GetDel(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to parse stored email %s: %w", key, err)
	}
	return data, nil
}
