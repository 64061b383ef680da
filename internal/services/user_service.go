package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
)

type UserService struct {
	userRepo models.UserRepo
	identity IdentityProvider
	// ids known to have a stored profile
	known sync.Map
}

func NewUserService(userRepo models.UserRepo, identity IdentityProvider) *UserService {
	return &UserService{
		userRepo: userRepo,
		identity: identity,
	}
}

func (us *UserService) Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error) {
	name = strings.TrimSpace(name)
	email = models.NormalizeEmail(email)

	if err := models.Validate.Var(name, "required,max=100"); err != nil {
		return nil, invalidf("%s", describeValidation("name", err))
	}
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return nil, invalidf("%s", describeValidation("email", err))
	}
	if !helpers.IsPasswordStrong(password) {
		return nil, invalidf("password must be at least 8 characters with upper and lower case letters, a number and a special character")
	}

	return us.identity.Register(ctx, name, email, password)
}

func (us *UserService) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	email = models.NormalizeEmail(email)
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return nil, invalidf("%s", describeValidation("email", err))
	}
	if password == "" {
		return nil, invalidf("password: required")
	}
	return us.identity.Login(ctx, email, password)
}

func (us *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	user, err := us.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// EnsureProfile stores name and email for a caller authenticated outside register/login
// (e.g. Google sign-in through Supabase) the first time they are seen, so their events
// resolve to a name and their profile exists.
func (us *UserService) EnsureProfile(ctx context.Context, userID, email, name string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if _, ok := us.known.Load(userID); ok {
		return nil
	}

	_, err := us.userRepo.GetUserByID(ctx, userID)
	switch {
	case err == nil:
		us.known.Store(userID, struct{}{})
		return nil
	case !errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("failed to get user: %w", err)
	}

	email = models.NormalizeEmail(email)
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return invalidf("token %s", describeValidation("email", err))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	if _, err := us.userRepo.UpsertUser(ctx, &models.User{ID: userID, Name: name, Email: email}); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to store user profile: %w", err)
	}
	us.known.Store(userID, struct{}{})
	return nil
}
