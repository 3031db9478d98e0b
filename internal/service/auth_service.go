package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"tax_analysis/internal/cache"
	"tax_analysis/internal/metrics"
	"tax_analysis/internal/model"
	"tax_analysis/internal/repository"
	"tax_analysis/internal/utils"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrFieldTooLong       = errors.New("field exceeds maximum length")
)

// Limits follow the users table columns; bcrypt only reads 72 bytes.
const (
	maxUsernameLength = 80
	maxEmailLength    = 120
	maxPhoneLength    = 32
	maxPasswordBytes  = 72
)

// AuthService provides signup, login and profile lookups
type AuthService interface {
	Register(ctx context.Context, req model.SignupRequest) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.User, string, error)
	Profile(ctx context.Context, userID int) (*model.User, error)
}

type authService struct {
	userRepo     repository.UserRepository
	jwtUtil      *utils.JWTUtil
	initialAdmin string
	statsCache   cache.StatsCache
	metrics      metrics.Recorder
	now          func() time.Time
}

// NewAuthService creates a new AuthService. Signing up as initialAdmin
// grants the admin role; an empty initialAdmin disables that.
func NewAuthService(userRepo repository.UserRepository, jwtUtil *utils.JWTUtil, initialAdmin string, statsCache cache.StatsCache, rec metrics.Recorder) AuthService {
	return &authService{
		userRepo:     userRepo,
		jwtUtil:      jwtUtil,
		initialAdmin: strings.TrimSpace(initialAdmin),
		statsCache:   statsCache,
		metrics:      rec,
		now:          time.Now,
	}
}

// Register creates a new account. It does not issue a token.
func (s *authService) Register(ctx context.Context, req model.SignupRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Login())
	if username == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}
	email := optional(req.Email)
	phone := optional(req.Phone)
	if err := checkLengths(username, email, phone, req.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}
	if email != nil {
		existing, err = s.userRepo.FindByEmail(ctx, *email)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing email: %w", err)
		}
		if existing != nil {
			return nil, ErrUserAlreadyExists
		}
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := model.RoleUser
	if s.initialAdmin != "" && strings.EqualFold(username, s.initialAdmin) {
		role = model.RoleAdmin
		log.Printf("INFO: User %s is being registered as ADMIN via INITIAL_ADMIN_USERNAME.", username)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: hashedPassword,
		Role:         role,
		CreatedAt:    s.now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent signup for the same name.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user in repository: %w", err)
	}

	invalidateStats(ctx, s.statsCache)
	return user, nil
}

func checkLengths(username string, email, phone *string, password string) error {
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return fmt.Errorf("%w: username is limited to %d characters", ErrFieldTooLong, maxUsernameLength)
	}
	if email != nil && utf8.RuneCountInString(*email) > maxEmailLength {
		return fmt.Errorf("%w: email is limited to %d characters", ErrFieldTooLong, maxEmailLength)
	}
	if phone != nil && utf8.RuneCountInString(*phone) > maxPhoneLength {
		return fmt.Errorf("%w: phone is limited to %d characters", ErrFieldTooLong, maxPhoneLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password is limited to %d bytes", ErrFieldTooLong, maxPasswordBytes)
	}
	return nil
}

// Login authenticates a user and returns a JWT token
func (s *authService) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, "", ErrMissingCredentials
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultFailure)
		return nil, "", fmt.Errorf("error finding user by username: %w", err)
	}
	if user == nil || !utils.CheckPasswordHash(password, user.PasswordHash) {
		s.metrics.RecordLogin(metrics.ResultInvalid)
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtUtil.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultFailure)
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.metrics.RecordLogin(metrics.ResultSuccess)
	return user, token, nil
}

func (s *authService) Profile(ctx context.Context, userID int) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// optional trims v and maps blanks to nil.
func optional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// invalidateStats drops the cached dashboard counters. Errors are logged and ignored.
func invalidateStats(ctx context.Context, c cache.StatsCache) {
	if c == nil {
		return
	}
	if err := c.Invalidate(ctx); err != nil {
		log.Printf("WARN: %v", err)
	}
}
