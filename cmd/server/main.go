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

	"github.com/UkralStul/blog-service/internal/account"
	"github.com/UkralStul/blog-service/internal/blog"
	"github.com/UkralStul/blog-service/internal/config"
	"github.com/UkralStul/blog-service/internal/credential"
	"github.com/UkralStul/blog-service/internal/dataloader"
	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/events"
	"github.com/UkralStul/blog-service/internal/httpapi"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/UkralStul/blog-service/internal/storage/inmemory"
	"github.com/UkralStul/blog-service/internal/storage/mongo"
	"github.com/UkralStul/blog-service/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting server with %s storage", cfg.Storage)
	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Printf("failed to close storage: %v", err)
		}
	}()

	broker := events.NewBroker()
	publisher := events.Fanout{broker}
	if cfg.NATSURL != "" {
		nats, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer nats.Close()
		publisher = append(publisher, nats)
	}

	accounts := account.NewService(store, credential.NewHasher(cfg.BcryptCost), credential.NewTokens(), account.Settings{
		AccessSecret:  cfg.JWTSecret,
		AccessTTL:     cfg.JWTExpiresIn,
		RefreshSecret: cfg.JWTRefreshSecret,
		RefreshTTL:    cfg.JWTRefreshExpiresIn,
	})
	posts := blog.NewService(store, store, dataloader.NewResolver(store), publisher)

	if cfg.Storage == config.StorageInMemory {
		// Заполним данными для тестов
		fillWithMockData(ctx, accounts, posts)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Accounts:     accounts,
		Posts:        posts,
		Events:       broker,
		AccountStore: store,
		CookieSecure: cfg.CookieSecure,
		RefreshTTL:   cfg.JWTRefreshExpiresIn,
		Ping:         store.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown failed: %v", err)
		}
	}()

	log.Printf("listening on http://localhost:%s/api/v1", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed to start: %v", err)
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		return postgres.New(cfg.DatabaseURL, cfg.GormLogLevel())
	case config.StorageMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return mongo.New(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return inmemory.New(), nil
	}
}

func fillWithMockData(ctx context.Context, accounts *account.Service, posts *blog.Service) {
	ann, err := accounts.Signup(ctx, account.SignupInput{Name: "Ann", Email: "ann@example.com", Password: "password"})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create account: %v", err)
	}
	bob, err := accounts.Signup(ctx, account.SignupInput{Name: "Bob", Email: "bob@example.com", Password: "password"})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create account: %v", err)
	}
	annID := domain.Identity{AccountID: ann.Account.ID}
	bobID := domain.Identity{AccountID: bob.Account.ID}

	post, err := posts.CreatePost(ctx, annID, blog.CreatePostInput{
		Title:       "Nested comments in Go",
		ImageURL:    "https://picsum.photos/seed/blog/800/400",
		Description: "How posts, comments and replies are stored and updated.",
	})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create post: %v", err)
	}

	withComment, err := posts.AddComment(ctx, bobID, post.ID, "Great post, very informative.")
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create comment: %v", err)
	}
	if _, err := posts.AddReply(ctx, annID, post.ID, withComment.Comments[0].ID, "Thanks, glad you liked it!"); err != nil {
		log.Fatalf("fillWithMockData: failed to create reply: %v", err)
	}
	if _, err := posts.Like(ctx, bobID, post.ID); err != nil {
		log.Fatalf("fillWithMockData: failed to like post: %v", err)
	}

	log.Printf("Mock data filled successfully. Accounts: ann@example.com, bob@example.com (password: password). Post ID: %s", post.ID)
}
