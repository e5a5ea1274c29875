package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"justmatcha-backend/internal/apperr"
	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
)

type SignUpInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignInInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput changes only the fields that are set.
type ProfileInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone"`
}

type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type Service struct {
	users    store.UserStore
	tx       store.Transactor
	tokens   *TokenMaker
	isAdmin  func(email string) bool
	validate *validator.Validate
	log      zerolog.Logger
}

func NewService(users store.UserStore, tx store.Transactor, tokens *TokenMaker, isAdmin func(string) bool, log zerolog.Logger) *Service {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Service{
		users:    users,
		tx:       tx,
		tokens:   tokens,
		isAdmin:  isAdmin,
		validate: validator.New(),
		log:      log,
	}
}

// SignUp creates the account and returns a session for it. The existence
// check and the insert share a transaction.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Invalid("name, a valid email and password are required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal(err, "could not create user")
	}

	now := time.Now().UTC()
	user := &model.User{
		Name:      in.Name,
		Email:     in.Email,
		Password:  string(hashed),
		IsAdmin:   s.isAdmin(in.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		_, err := s.users.GetByEmail(ctx, in.Email)
		switch {
		case err == nil:
			return apperr.Conflict("User already exists")
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("lookup user: %w", err)
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("User already exists")
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, apperr.Internal(err, "could not create user")
	}

	token, err := s.tokens.Create(user.ID.Hex())
	if err != nil {
		return nil, apperr.Internal(err, "could not issue token")
	}
	s.log.Info().Str("user_id", user.ID.Hex()).Bool("admin", user.IsAdmin).Msg("user signed up")
	return &Session{Token: token, User: user}, nil
}

func (s *Service) SignIn(ctx context.Context, in SignInInput) (*Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Invalid("email and password are required")
	}
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal(err, "could not sign in")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	token, err := s.tokens.Create(user.ID.Hex())
	if err != nil {
		return nil, apperr.Internal(err, "could not issue token")
	}
	return &Session{Token: token, User: user}, nil
}

// Authenticate resolves a bearer token to the current user record, so admin
// changes take effect on the next request.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized("user no longer exists")
		}
		return nil, apperr.Internal(err, "could not authenticate")
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal(err, "could not load user")
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id primitive.ObjectID, in ProfileInput) (*model.User, error) {
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return nil, apperr.Invalid("name must not be empty")
		}
		in.Name = &trimmed
	}
	if in.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &normalized
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Invalid("email must be valid")
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, apperr.Conflict("Email already in use")
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal(err, "could not update profile")
	}
	return user, nil
}
