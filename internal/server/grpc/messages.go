package grpc

import (
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

type RegisterRequest struct {
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type AuthenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type HandleRequest struct {
	Handle string `json:"handle"`
}

type Empty struct{}

type Account struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Email     string    `json:"email"`
	Activated bool      `json:"activated"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Source    string    `json:"source"`
}

type AuthenticateResponse struct {
	Token   string  `json:"token"`
	Account Account `json:"account"`
}

type MigrateResponse struct {
	Total    int                       `json:"total"`
	Migrated int                       `json:"migrated"`
	Skipped  int                       `json:"skipped"`
	Skips    []models.MigrationSkip    `json:"skips,omitempty"`
	Errors   []models.MigrationFailure `json:"errors,omitempty"`
}

type MigrationStatusResponse struct {
	LegacyCount     int   `json:"legacyCount"`
	StructuredCount int64 `json:"structuredCount"`
	Pending         int   `json:"pending"`
	LegacyPresent   bool  `json:"legacyPresent"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

func toAccount(a *models.Account) Account {
	return Account{
		ID:        a.ID,
		Handle:    a.Handle,
		Email:     a.Email,
		Activated: a.Activated,
		Avatar:    a.Avatar,
		CreatedAt: a.CreatedAt,
		Source:    a.Source.String(),
	}
}
