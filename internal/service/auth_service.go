package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"readquest/internal/models"
	"readquest/internal/repository"
	"readquest/internal/security"
)

// ErrInvalidCredentials is returned for a failed login. The same error
// covers unknown email and wrong password so the response leaks
// nothing about which was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService authenticates operators of the maintenance surface
type AuthService struct {
	operatorRepo  *repository.OperatorRepository
	jwtSecret     string
	tokenDuration time.Duration
	logger        *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(operatorRepo *repository.OperatorRepository, jwtSecret string, tokenDuration time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		operatorRepo:  operatorRepo,
		jwtSecret:     jwtSecret,
		tokenDuration: tokenDuration,
		logger:        logger,
	}
}

// Login verifies an operator's credentials and issues a signed token
func (s *AuthService) Login(email, password string) (string, *models.Operator, error) {
	operator, err := s.operatorRepo.GetOperatorByEmail(email)
	if err != nil {
		return "", nil, err
	}
	if operator == nil || !security.CheckPassword(password, operator.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := security.IssueOperatorToken(s.jwtSecret, operator.ID, operator.Email, s.tokenDuration)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("operator logged in", zap.String("email", operator.Email))
	return token, operator, nil
}

// Validate parses and verifies a bearer token
func (s *AuthService) Validate(token string) (*security.OperatorClaims, error) {
	return security.ParseOperatorToken(s.jwtSecret, token)
}

// EnsureBootstrapOperator seeds the first operator account when none
// exists, so a fresh deployment is usable without manual SQL
func (s *AuthService) EnsureBootstrapOperator(email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}

	count, err := s.operatorRepo.CountOperators()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.operatorRepo.CreateOperator(email, hash, name); err != nil {
		return err
	}

	s.logger.Info("bootstrap operator created", zap.String("email", email))
	return nil
}
