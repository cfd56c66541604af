package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost стандартная сложность bcrypt
	DefaultBcryptCost = 10
	// MaxPasswordBytes bcrypt игнорирует все после 72 байт
	MaxPasswordBytes = 72
)

var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrPasswordTooLong  = errors.New("password must be no more than 72 bytes long")
	ErrPasswordMismatch = errors.New("password does not match")
)

// PasswordService сервис для работы с паролями
type PasswordService struct {
	cost int
}

// NewPasswordService создает новый сервис для работы с паролями
func NewPasswordService() *PasswordService {
	return &PasswordService{
		cost: DefaultBcryptCost,
	}
}

// NewPasswordServiceWithCost создает новый сервис с заданной сложностью
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{
		cost: cost,
	}
}

// HashPassword хеширует пароль с использованием bcrypt (соль встроена в хеш)
func (s *PasswordService) HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", ErrInvalidPassword
	}
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// VerifyPassword проверяет соответствие пароля и хеша
func (s *PasswordService) VerifyPassword(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
