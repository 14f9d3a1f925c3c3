package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/threadswap/threadswap/api"
	"github.com/threadswap/threadswap/catalog"
	"github.com/threadswap/threadswap/config"
	"github.com/threadswap/threadswap/pipeline"
	"github.com/threadswap/threadswap/products"
	"github.com/threadswap/threadswap/studio"
	"github.com/threadswap/threadswap/utils"
	"github.com/threadswap/threadswap/vision"
)

func main() {
	config.LoadConfig()
	logger := utils.NewLogger(config.LogLevel, config.LogPretty)

	if err := utils.ConnectMongo(config.MongoURI); err != nil {
		logger.Fatal().Err(err).Msg("mongo connection failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := utils.EnsureIndexes(ctx, config.MongoDBName); err != nil {
		logger.Warn().Err(err).Msg("index creation failed, continuing")
	}
	cancel()

	if err := utils.InitS3(); err != nil {
		logger.Fatal().Err(err).Msg("s3 initialization failed")
	}

	httpClient := utils.NewHTTPClient(120 * time.Second)

	pipe := pipeline.New(pipeline.Options{
		Cutout: pipeline.NewCutoutClient(pipeline.CutoutOptions{
			BaseURL:    config.CutoutAPIURL,
			APIKey:     config.CutoutAPIKey,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		Overlay: pipeline.NewTryOnClient(pipeline.TryOnOptions{
			BaseURL:    config.TryOnAPIURL,
			APIKey:     config.TryOnAPIKey,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		Logger: logger,
	})

	store := products.NewStore(utils.GetCollection(config.MongoDBName, "products"), logger)
	drafts := products.NewStudioDrafts(store, logger)
	gens := products.NewGenerations(utils.GetCollection(config.MongoDBName, "studio_generations"), logger)
	modelCatalog := catalog.New(utils.GetCollection(config.MongoDBName, "fashion_models"), logger)

	// Listing copy falls back to a plain template when Gemini is not
	// configured.
	var describer studio.Describer
	if config.GeminiAPIKey != "" {
		gemini, err := vision.NewGemini(vision.GeminiOptions{
			APIKey: config.GeminiAPIKey,
			Model:  config.GeminiModel,
			Logger: logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("vision disabled")
		} else {
			describer = gemini
		}
	}

	studioSvc := studio.New(studio.Options{
		Generator:     pipe,
		Drafts:        drafts,
		Describer:     describer,
		Recorder:      gens,
		Currency:      config.DraftCurrency,
		Timeout:       time.Duration(config.StudioTimeoutSec) * time.Second,
		MaxConcurrent: int64(config.MaxGenerations),
		Logger:        logger,
	})

	api.Init(api.Deps{
		Logger:      logger,
		Studio:      studioSvc,
		Catalog:     modelCatalog,
		Products:    store,
		Generations: gens,
	})

	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", config.AllowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, PATCH, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}
	public := func(h http.HandlerFunc) http.HandlerFunc { return corsMiddleware(h) }
	authed := func(h http.HandlerFunc) http.HandlerFunc { return corsMiddleware(api.AuthMiddleware(h)) }
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(api.AuthMiddleware(api.AdminOnly(h)))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/auth/signup", public(api.SignupHandler))
	mux.HandleFunc("/auth/verify-otp", public(api.VerifyOTPHandler))
	mux.HandleFunc("/auth/login", public(api.LoginHandler))
	mux.HandleFunc("/auth/forgot-password", public(api.ForgotPasswordHandler))
	mux.HandleFunc("/auth/reset-password", public(api.ResetPasswordHandler))
	mux.HandleFunc("/auth/google/login", public(api.GoogleLoginHandler))
	mux.HandleFunc("/auth/google/callback", public(api.GoogleCallbackHandler))

	mux.HandleFunc("/profile", authed(api.ProfileHandler))
	mux.HandleFunc("/profile/avatar", authed(api.AvatarHandler))

	mux.HandleFunc("/products", public(api.BrowseProductsHandler))
	mux.HandleFunc("/products/detail", public(api.ProductDetailHandler))

	mux.HandleFunc("/studio/session", authed(api.StudioSessionHandler))
	mux.HandleFunc("/studio/upload", authed(api.StudioUploadHandler))
	mux.HandleFunc("/studio/category", authed(api.StudioCategoryHandler))
	mux.HandleFunc("/studio/model", authed(api.StudioModelHandler))
	mux.HandleFunc("/studio/generate", authed(api.StudioGenerateHandler))
	mux.HandleFunc("/studio/keep", authed(api.StudioKeepHandler))
	mux.HandleFunc("/studio/run-again", authed(api.StudioRunAgainHandler))
	mux.HandleFunc("/studio/models", public(api.FashionModelsHandler))
	mux.HandleFunc("/studio/gallery", authed(api.GalleryHandler))
	mux.HandleFunc("/studio/gallery/delete", authed(api.GalleryDeleteHandler))

	mux.HandleFunc("/seller/listings", authed(api.MyListingsHandler))
	mux.HandleFunc("/seller/listings/update", authed(api.UpdateListingHandler))
	mux.HandleFunc("/seller/listings/publish", authed(api.PublishListingHandler))
	mux.HandleFunc("/seller/listings/delete", authed(api.DeleteListingHandler))
	mux.HandleFunc("/seller/import", authed(api.ImportListingHandler))

	mux.HandleFunc("/cart", authed(api.CartHandler))
	mux.HandleFunc("/checkout", authed(api.CheckoutHandler))
	mux.HandleFunc("/orders", authed(api.OrdersHandler))

	mux.HandleFunc("/messages/send", authed(api.SendMessageHandler))
	mux.HandleFunc("/messages/conversation", authed(api.ConversationHandler))
	mux.HandleFunc("/messages", authed(api.ConversationsHandler))

	mux.HandleFunc("/feedback", authed(api.FeedbackHandler))

	mux.HandleFunc("/admin/moderation", admin(api.ModerationQueueHandler))
	mux.HandleFunc("/admin/moderation/decide", admin(api.ModerateListingHandler))
	mux.HandleFunc("/admin/models", admin(api.FashionModelAdminHandler))
	mux.HandleFunc("/admin/models/feature", admin(api.FeatureModelHandler))

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           utils.LatencyMiddleware(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("port", config.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown did not finish cleanly")
	}
}
