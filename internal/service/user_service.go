package service

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/store"
)

type UserStore interface {
	store.Transactor
	store.UserRepository
}

// Users manages administrator accounts. Every user receives the admin report.
type Users struct {
	repo UserStore
}

func NewUsers(repo UserStore) *Users {
	return &Users{repo: repo}
}

func (u *Users) CreateUser(ctx context.Context, input domain.UserInput) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	var created *domain.User
	err = u.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = u.repo.CreateUser(ctx, domain.User{
			Name:         input.Name,
			Email:        input.Email,
			PasswordHash: string(hash),
		})
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return *created, nil
}

func (u *Users) GetAllUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := u.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		users, err = u.repo.ListUsers(ctx)
		return err
	})
	return users, err
}
