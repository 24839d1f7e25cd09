package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"convochat/model"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type UserService struct {
	store  *model.Store
	tokens *TokenService
}

func NewUserService(store *model.Store, tokens *TokenService) *UserService {
	return &UserService{store: store, tokens: tokens}
}

type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (service *UserService) Register(ctx context.Context, user *User) (*model.User, error) {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" {
		return nil, fmt.Errorf("%w: username is required", model.ErrValidation)
	}
	if !isValidEmail(user.Email) {
		return nil, fmt.Errorf("%w: invalid email address", model.ErrValidation)
	}
	if !isValidPassword(user.Password) {
		return nil, fmt.Errorf("%w: password must be 8-64 characters and mix at least three of digits, lower case, upper case and symbols", model.ErrValidation)
	}

	// 唯一性检查
	exists, err := service.store.UserExists(ctx, user.Username, user.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	// 密码加密
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &model.User{
		Username: user.Username,
		Email:    user.Email,
		Password: string(hashedPassword),
	}
	if err := service.store.CreateUser(ctx, newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

// Login checks the credentials and returns a fresh access token.
func (service *UserService) Login(ctx context.Context, user *User) (string, error) {
	registeredUser, err := service.store.GetUserByUsername(ctx, user.Username)
	if errors.Is(err, model.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(registeredUser.Password), []byte(user.Password)); err != nil {
		return "", ErrInvalidCredentials
	}

	// 生成会话令牌
	token, err := service.tokens.CreateToken(registeredUser.ID, registeredUser.Username)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token.AccessToken, nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	if strings.TrimSpace(email) == "" {
		return false
	}
	return emailRegex.MatchString(email)
}

// isValidPassword 长度 8-64，且至少包含数字、小写字母、大写字母、特殊字符中的三种
func isValidPassword(password string) bool {
	const minLen, maxLen = 8, 64
	if len(password) < minLen || len(password) > maxLen {
		return false
	}

	var hasNumber, hasLower, hasUpper, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	kinds := 0
	for _, ok := range []bool{hasNumber, hasLower, hasUpper, hasSpecial} {
		if ok {
			kinds++
		}
	}
	return kinds >= 3
}
