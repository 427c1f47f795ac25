package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"soomhub/market/internal/auth"
	"soomhub/market/internal/db"
	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

// RegisterInput carries the fields a new account is created from.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Locale   string
	Password string
}

// UserUpdate holds the self-editable profile fields. Nil fields are left unchanged.
type UserUpdate struct {
	Name   *string
	Phone  *string
	Locale *string
}

// IUserService defines the interface for user-related operations.
type IUserService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, page Page) ([]models.User, string, error)
	UpdateUser(ctx context.Context, userID utils.SixID, upd UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, userID utils.SixID) error
}

type userService struct {
	db            *mongo.Database
	policy        *auth.PasswordPolicy
	defaultLocale string
}

// NewUserService creates a new UserService. A nil policy accepts any non-empty password.
func NewUserService(db *mongo.Database, policy *auth.PasswordPolicy, defaultLocale string) IUserService {
	return &userService{db: db, policy: policy, defaultLocale: defaultLocale}
}

// NormalizeEmail lowercases and trims an address for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, auth.ErrWeakPassword
	}
	if s.policy != nil {
		if err := s.policy.Check(in.Password); err != nil {
			return nil, err
		}
	}
	locale := in.Locale
	if locale == "" {
		locale = s.defaultLocale
	}
	if !models.ValidLocale(locale) {
		return nil, fmt.Errorf("%w: unsupported locale %q", ErrInvalidInput, locale)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	collection := s.db.Collection(db.UsersCollection)
	now := time.Now().UTC()
	var user *models.User
	err = db.Try(ctx, func() error {
		user = &models.User{
			Base:         models.NewBase(),
			Name:         strings.TrimSpace(in.Name),
			Email:        email,
			Phone:        strings.TrimSpace(in.Phone),
			Locale:       locale,
			PasswordHash: hash,
		}
		user.Touch(now)
		_, insertErr := collection.InsertOne(ctx, user)
		return insertErr
	})
	if err != nil {
		if db.IsDuplicateOnIndex(err, "email_1") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", email, err)
	}
	return user, nil
}

// Authenticate returns ErrInvalidCredentials for both unknown emails and wrong passwords.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": userID, "deleted": false})
}

func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email), "deleted": false})
}

func (s *userService) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &user, nil
}

func (s *userService) ListUsers(ctx context.Context, page Page) ([]models.User, string, error) {
	filter := page.apply(bson.M{"deleted": false})
	cursor, err := s.db.Collection(db.UsersCollection).Find(ctx, filter, page.findOptions())
	if err != nil {
		return nil, "", fmt.Errorf("error listing users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, "", fmt.Errorf("error decoding users: %w", err)
	}
	users, next := trimPage(users, page, func(u models.User) (time.Time, utils.SixID) { return u.CreatedAt, u.ID })
	return users, next, nil
}

func (s *userService) UpdateUser(ctx context.Context, userID utils.SixID, upd UserUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Phone != nil {
		set["phone"] = strings.TrimSpace(*upd.Phone)
	}
	if upd.Locale != nil {
		if !models.ValidLocale(*upd.Locale) {
			return nil, fmt.Errorf("%w: unsupported locale %q", ErrInvalidInput, *upd.Locale)
		}
		set["locale"] = *upd.Locale
	}

	var user models.User
	err := s.db.Collection(db.UsersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "deleted": false},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user %s: %w", userID, err)
	}
	return &user, nil
}

// DeleteUser soft deletes the user and frees the email for a new registration.
func (s *userService) DeleteUser(ctx context.Context, userID utils.SixID) error {
	now := time.Now().UTC()
	res, err := s.db.Collection(db.UsersCollection).UpdateOne(ctx,
		bson.M{"_id": userID, "deleted": false},
		bson.M{"$set": bson.M{
			"deleted":    true,
			"email":      fmt.Sprintf("deleted+%s@%d.invalid", userID, now.Unix()),
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
