package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stagehand/backline/internal/cache"
	"github.com/stagehand/backline/internal/config"
	"github.com/stagehand/backline/internal/handlers"
	"github.com/stagehand/backline/internal/lifecycle"
	"github.com/stagehand/backline/internal/logging"
	"github.com/stagehand/backline/internal/mykafka"
	"github.com/stagehand/backline/internal/notify"
	"github.com/stagehand/backline/internal/oauth"
	"github.com/stagehand/backline/internal/policy"
	"github.com/stagehand/backline/internal/search"
	"github.com/stagehand/backline/internal/tempfile"
	httpserver "github.com/stagehand/backline/internal/transport/http"
)

const (
	artistIndex    = "artists"
	eventsTopic    = "entity_events"
	notifyTopic    = "notifications"
	maintenanceGap = time.Hour
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	ctx := logging.IntoContext(context.Background(), logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     configuration.REDIS_ADDRESS,
		Password: configuration.REDIS_PASSWORD,
	})

	esClient, err := search.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch init failed: %v", err)
	}

	prod := mykafka.NewProducer(configuration.KAFKA_ADDRESS)

	cipher, err := oauth.NewTokenCipher(configuration.TOKEN_ENCRYPTION_KEY)
	if err != nil {
		log.Fatalf("token cipher init failed: %v", err)
	}

	oauthManager := &oauth.Manager{
		DB:     db,
		Cipher: cipher,
		Providers: map[string]oauth.Provider{
			oauth.ProviderSpotify: oauth.NewSpotifyProvider(oauth.SpotifyConfig{
				ClientID:     configuration.SPOTIFY_CLIENT_ID,
				ClientSecret: configuration.SPOTIFY_CLIENT_SECRET,
			}),
			oauth.ProviderGoogle: oauth.NewGoogleProvider(oauth.GoogleConfig{
				ClientID:     configuration.GOOGLE_CLIENT_ID,
				ClientSecret: configuration.GOOGLE_CLIENT_SECRET,
			}),
		},
	}

	bus := lifecycle.NewBus()
	listCache := cache.New(rdb, 5*time.Minute)
	bus.Subscribe(cache.Subscriber(listCache))
	indexer := &search.ArtistIndexer{ES: esClient, DB: db, Index: artistIndex}
	bus.Subscribe(indexer.Subscriber())
	bus.Subscribe(mykafka.Forwarder(prod, eventsTopic))

	notifier := &notify.KafkaNotifier{Producer: prod, Topic: notifyTopic}
	tempFiles := tempfile.New(db, tempfile.DefaultTTL)
	media := &lifecycle.MediaManager{DB: db, Mover: tempFiles}

	userService := &lifecycle.UserService{DB: db, Bus: bus, Notifier: notifier, Media: media}
	adminService := &lifecycle.AdminService{DB: db, Bus: bus, Notifier: notifier, Media: media}
	artistService := &lifecycle.ArtistService{DB: db, Bus: bus, Notifier: notifier, Media: media}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		DB: db,
		Auth: &handlers.AuthMiddleware{
			JWTSecret: []byte(configuration.JWT_SECRET),
			Resolver:  &policy.Resolver{DB: db},
		},
		UserHandler:   &handlers.UserHandler{Service: userService, Cache: listCache},
		AdminHandler:  &handlers.AdminHandler{Service: adminService, Cache: listCache},
		ArtistHandler: &handlers.ArtistHandler{Service: artistService, Cache: listCache, ES: esClient, Index: artistIndex},
		OAuthHandler:  &handlers.OAuthHandler{Manager: oauthManager, ErrorURL: "/login?error=oauth"},
		UploadHandler: &handlers.UploadHandler{Temp: tempFiles},
	}

	httpserver.Register(e, &deps)

	maintenanceCtx, stopMaintenance := context.WithCancel(ctx)
	go runMaintenance(maintenanceCtx, oauthManager, tempFiles)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	stopMaintenance()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}

	log.Println("shutdown complete")
}

// runMaintenance periodically deactivates expired oauth tokens and
// garbage-collects expired temp uploads.
func runMaintenance(ctx context.Context, oauthManager *oauth.Manager, tempFiles *tempfile.Service) {
	ticker := time.NewTicker(maintenanceGap)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := oauthManager.CleanupExpiredTokens(ctx); err != nil {
				logging.FromContext(ctx).Error("oauth_cleanup_failed", "error", err)
			}
			if _, err := tempFiles.CleanupExpired(ctx); err != nil {
				logging.FromContext(ctx).Error("tempfile_cleanup_failed", "error", err)
			}
		}
	}
}
