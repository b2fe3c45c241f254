package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/tasko/internal/constants"
	"github.com/yukikurage/tasko/internal/logging"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/repository"
	"github.com/yukikurage/tasko/internal/storage"
	"github.com/yukikurage/tasko/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrEmailRequired        = errors.New("email is required")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrUserNotFound         = errors.New("user not found")
	ErrFailedToHashPassword = errors.New("failed to hash password")
	ErrFailedToCreateUser   = errors.New("failed to create user")
	ErrAvatarTooLarge       = errors.New("avatar exceeds the maximum size")
)

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo  repository.UserRepository
	objects   storage.ObjectStore
	jwtSecret string
}

// NewAuthService creates a new AuthService. objects may be nil when
// uploads are disabled.
func NewAuthService(userRepo repository.UserRepository, objects storage.ObjectStore, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		objects:   objects,
		jwtSecret: jwtSecret,
	}
}

// SignupInput represents the required information to create a new user.
type SignupInput struct {
	Email    string
	Password string
	FullName string
}

// Signup creates a new user.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	user := &models.User{
		Email:        email,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		logging.LogError("signup", err, logrus.Fields{"email": email})
		return nil, ErrFailedToCreateUser
	}

	return user, nil
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and returns the authenticated user with a
// signed access token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*models.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, utils.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := utils.GenerateAccessToken(user.ID, s.jwtSecret, constants.AccessTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return user, token, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// UpdateProfileInput holds optional profile changes.
type UpdateProfileInput struct {
	FullName *string
	Password *string
}

// UpdateProfile changes the caller's display name and/or password.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint64, input UpdateProfileInput) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Password != nil {
		if len(*input.Password) < constants.MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, ErrFailedToHashPassword
		}
		user.PasswordHash = string(hashed)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// UploadAvatar stores an image and points the user's avatar at it. The
// previous avatar, if it lives in the same store, is removed.
func (s *AuthService) UploadAvatar(ctx context.Context, userID uint64, data []byte) (*models.User, error) {
	if s.objects == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	if len(data) > constants.MaxAvatarBytes {
		return nil, ErrAvatarTooLarge
	}

	_, ext, err := storage.DetectImage(data)
	if err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := path.Join(constants.AvatarPrefix, fmt.Sprintf("%d", userID), uuid.NewString()+ext)
	url, err := s.objects.Put(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store avatar: %w", err)
	}

	previous := user.AvatarURL
	user.AvatarURL = url
	if err := s.userRepo.Update(ctx, user); err != nil {
		_ = s.objects.Delete(ctx, key)
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if local, ok := s.objects.(*storage.LocalStore); ok && previous != "" {
		if oldKey := local.KeyFromURL(previous); oldKey != "" {
			if err := s.objects.Delete(ctx, oldKey); err != nil {
				logging.LogError("avatar_cleanup", err, logrus.Fields{"user_id": userID, "key": oldKey})
			}
		}
	}

	return user, nil
}
