package service

import (
	"context"
	"errors"
	"strings"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"
	"agora/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when a username is unknown so that
// response timing does not reveal which accounts exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("agora-timing-equaliser"), bcrypt.DefaultCost)

type AuthService struct {
	users  repository.UserRepository
	tokens *TokenService
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type LoginInput struct {
	Username string
	Password string
}

type LogoutInput struct {
	RefreshToken string
	AccessToken  string
}

// RegisterResult is returned to a newly registered user.
type RegisterResult struct {
	User   *models.User `json:"user"`
	Access string       `json:"access"`
	// Refresh is the long-lived token used at /auth/token/refresh.
	Refresh string `json:"refresh"`
}

func NewAuthService(users repository.UserRepository, tokens *TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *RegisterResult, err error) {
	ctx, end := observability.StartServiceSpan(ctx, "AuthService", "Register")
	defer end(&err)
	defer func() { observability.Audit().Auth(ctx, "register", in.Username, err) }()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLength("first_name", in.FirstName, false, 150); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLength("last_name", in.LastName, false, 150); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password, validation.PasswordContext{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  string(hashed),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{User: user, Access: pair.Access, Refresh: pair.Refresh}, nil
}

// Login checks credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (_ TokenPair, err error) {
	ctx, end := observability.StartServiceSpan(ctx, "AuthService", "Login")
	defer end(&err)
	defer func() { observability.Audit().Auth(ctx, "login", in.Username, err) }()

	invalid := models.NewUnauthorizedError("Invalid credentials")
	if in.Username == "" || in.Password == "" {
		return TokenPair{}, models.NewValidationError("Username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
			return TokenPair{}, invalid
		}
		return TokenPair{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return TokenPair{}, invalid
	}
	return s.tokens.Issue(user.ID)
}

// Refresh returns a new access token for a valid refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", models.NewValidationError("Refresh token is required")
	}
	return s.tokens.Refresh(ctx, refreshToken)
}

// Logout revokes the refresh token and, when given, the access token used
// for the request.
func (s *AuthService) Logout(ctx context.Context, in LogoutInput) (err error) {
	defer func() { observability.Audit().Auth(ctx, "logout", "", err) }()

	if in.RefreshToken == "" {
		return models.NewValidationError("Refresh token is required")
	}
	if _, err := s.tokens.Revoke(ctx, in.RefreshToken, TokenTypeRefresh); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeUnauthorized {
			return models.NewValidationError("Invalid refresh token")
		}
		return err
	}
	if in.AccessToken != "" {
		if _, err := s.tokens.Revoke(ctx, in.AccessToken, TokenTypeAccess); err != nil {
			return err
		}
	}
	return nil
}
