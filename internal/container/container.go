package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joshua-takyi/eventhub/internal/config"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/realtime"
	"github.com/joshua-takyi/eventhub/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

// Clients are the connected external services. Redis and Supabase may be nil.
type Clients struct {
	Mongo      *mongo.Client
	Cloudinary *cloudinary.Cloudinary
	Redis      *redis.Client
	Supabase   *supabase.Client
}

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Repo          *models.MongodbRepo
	Hub           *realtime.Hub
	RedisPubSub   *realtime.RedisPubSub
	TokenVerifier helpers.TokenVerifier

	EventService *services.EventService
	UserService  *services.UserService

	closers []func()
}

// NewContainer wires repositories, the realtime hub and services for the configured
// auth provider.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, clients Clients) (*Container, error) {
	repo := models.MongodbNewRepo(clients.Mongo, cfg.MongoDBDatabase)
	images := helpers.NewCloudinaryStore(clients.Cloudinary, cfg.CloudinaryFolder)

	c := &Container{
		Config: cfg,
		Logger: logger,
		Repo:   repo,
		Hub:    realtime.NewHub(logger),
	}

	var fanout realtime.Fanout
	if clients.Redis != nil {
		c.RedisPubSub = realtime.NewRedisPubSub(clients.Redis, logger)
		fanout = c.RedisPubSub
	}
	broadcaster := realtime.NewBroadcaster(c.Hub, fanout, logger)

	var identity services.IdentityProvider
	switch cfg.AuthProvider {
	case config.AuthProviderSupabase:
		if clients.Supabase == nil {
			return nil, fmt.Errorf("supabase client is required when AUTH_PROVIDER=supabase")
		}
		verifier, err := helpers.NewJWKSVerifier(ctx, helpers.SupabaseJWKSURL(cfg.SupabaseURL), logger)
		if err != nil {
			return nil, err
		}
		c.TokenVerifier = verifier
		c.closers = append(c.closers, verifier.Close)
		identity = services.NewSupabaseIdentity(clients.Supabase, repo, logger)
	default:
		issuer := helpers.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTExpireHours)*time.Hour)
		c.TokenVerifier = issuer
		identity = services.NewLocalIdentity(repo, issuer)
	}

	c.EventService = services.NewEventService(repo, repo, images, broadcaster, logger, cfg.MaxPageSize)
	c.UserService = services.NewUserService(repo, identity)
	return c, nil
}

// Close drops every WebSocket connection and stops background key refresh.
func (c *Container) Close() {
	c.Hub.Close()
	for _, closeFn := range c.closers {
		closeFn()
	}
}
