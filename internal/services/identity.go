package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
	"golang.org/x/crypto/bcrypt"
)

// IdentityProvider creates accounts and exchanges credentials for access tokens.
// Inputs arrive validated and normalized.
type IdentityProvider interface {
	Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
}

// LocalIdentity stores bcrypt hashes in the users collection and issues HS256 tokens.
type LocalIdentity struct {
	users  models.UserRepo
	tokens *helpers.TokenIssuer
}

func NewLocalIdentity(users models.UserRepo, tokens *helpers.TokenIssuer) *LocalIdentity {
	return &LocalIdentity{users: users, tokens: tokens}
}

func (li *LocalIdentity) Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := li.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return li.issue(user)
}

func (li *LocalIdentity) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	user, err := li.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return li.issue(user)
}

func (li *LocalIdentity) issue(user *models.User) (*models.AuthResponse, error) {
	token, err := li.tokens.Generate(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Token:     token,
		ExpiresIn: int(li.tokens.TTL().Seconds()),
	}, nil
}

// SupabaseIdentity delegates credentials to Supabase Auth and mirrors the profile
// into the users collection so events can resolve creator and attendee names.
type SupabaseIdentity struct {
	client *supabase.Client
	users  models.UserRepo
	logger *slog.Logger
}

func NewSupabaseIdentity(client *supabase.Client, users models.UserRepo, logger *slog.Logger) *SupabaseIdentity {
	return &SupabaseIdentity{client: client, users: users, logger: logger}
}

func (si *SupabaseIdentity) Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error) {
	res, err := si.client.Auth.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
		Data:     map[string]interface{}{"name": name},
	})
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "already registered") || strings.Contains(msg, "already exists") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	user, err := si.mirror(ctx, res.User.ID.String(), name, email)
	if err != nil {
		return nil, err
	}

	token, expiresIn := res.AccessToken, res.ExpiresIn
	if token == "" {
		// projects without auto-confirm return no session on signup
		if session, err := si.client.Auth.SignInWithEmailPassword(email, password); err == nil {
			token, expiresIn = session.AccessToken, session.ExpiresIn
		} else {
			si.logger.Info("Signup pending email confirmation", "user_id", user.ID)
		}
	}

	return &models.AuthResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Token:     token,
		ExpiresIn: expiresIn,
	}, nil
}

func (si *SupabaseIdentity) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	session, err := si.client.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		si.logger.Debug("Supabase sign in rejected", "error", err)
		return nil, ErrInvalidCredentials
	}

	userID := session.User.ID.String()
	user, err := si.users.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		name, _ := session.User.UserMetadata["name"].(string)
		if user, err = si.mirror(ctx, userID, name, email); err != nil {
			return nil, err
		}
	}

	return &models.AuthResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Token:     session.AccessToken,
		ExpiresIn: session.ExpiresIn,
	}, nil
}

func (si *SupabaseIdentity) mirror(ctx context.Context, id, name, email string) (*models.User, error) {
	user, err := si.users.UpsertUser(ctx, &models.User{ID: id, Name: name, Email: email})
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to store user profile: %w", err)
	}
	return user, nil
}
