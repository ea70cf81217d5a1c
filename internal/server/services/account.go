// Package services contains server-side business logic. AccountService
// orchestrates registration, authentication, lookup, deletion and the legacy
// migration over the dual-shape account store.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/auth"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/handles"
	"github.com/dmitrijs2005/gophaccounts/internal/server/lockout"
	"github.com/dmitrijs2005/gophaccounts/internal/server/migration"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophaccounts/internal/server/store"
	"github.com/dmitrijs2005/gophaccounts/internal/server/validation"
	"github.com/google/uuid"
)

// RegisterInput is a registration request. When Handle is empty one is
// derived from DisplayName.
type RegisterInput struct {
	Handle      string
	DisplayName string
	Email       string
	Password    string
}

// AuthResult is returned by a successful Authenticate.
type AuthResult struct {
	Token   string
	Account *models.Account
}

type AccountService struct {
	store     *store.AccountStore
	engine    *migration.Engine
	generator *handles.Generator
	tracker   *lockout.Tracker
	hasher    *auth.Hasher
	signer    *auth.Signer
	validator *validation.Validator
	log       logging.Logger
	now       func() time.Time

	// digest verified against when the email is unknown, so both paths
	// cost one hash computation
	dummyDigest string
}

type Option func(*options)

type options struct {
	now        func() time.Time
	hasher     *auth.Hasher
	handleOpts []handles.Option
	engineOpts []migration.Option
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithHasher(h *auth.Hasher) Option {
	return func(o *options) { o.hasher = h }
}

func WithHandleOptions(opts ...handles.Option) Option {
	return func(o *options) { o.handleOpts = append(o.handleOpts, opts...) }
}

// WithMigrationOptions configures the migration engine (guard, archive).
func WithMigrationOptions(opts ...migration.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// NewAccountService wires the service over the repositories vended by m.
func NewAccountService(m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger, opts ...Option) (*AccountService, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.hasher == nil {
		o.hasher = auth.NewHasher(auth.DefaultArgon2Params)
	}

	dummy, err := o.hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("dummy digest: %w", err)
	}

	st := store.NewAccountStore(m.Accounts(), m.Legacy())
	engineOpts := append([]migration.Option{migration.WithClock(o.now)}, o.engineOpts...)
	handleOpts := append([]handles.Option{handles.WithClock(o.now)}, o.handleOpts...)

	return &AccountService{
		store:       st,
		engine:      migration.NewEngine(m.Accounts(), m.Legacy(), log, engineOpts...),
		generator:   handles.NewGenerator(st.ExistsHandle, handleOpts...),
		tracker:     lockout.NewTracker(lockout.Config{Threshold: cfg.LockoutThreshold, Duration: cfg.LockoutDuration}),
		hasher:      o.hasher,
		signer:      auth.NewSigner(cfg.SecretKey, cfg.TokenValidityDuration),
		validator:   validation.New(),
		log:         log.With("module", "accounts"),
		now:         o.now,
		dummyDigest: dummy,
	}, nil
}

// Register creates a structured account. A handle taken in either shape, or
// an email taken case-insensitively, yields common.ErrDuplicateIdentity.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	in.Handle = strings.TrimSpace(in.Handle)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.validator.Struct(validation.Registration{
		Handle:      in.Handle,
		DisplayName: in.DisplayName,
		Email:       in.Email,
		Password:    in.Password,
	}); err != nil {
		return nil, err
	}

	handle := in.Handle
	if handle == "" {
		generated, err := s.generator.Generate(ctx, in.DisplayName)
		if err != nil {
			return nil, err
		}
		handle = generated
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %w", common.ErrInternal, err)
	}

	now := s.now()
	created, err := s.store.Create(ctx, &models.Account{
		ID:               uuid.NewString(),
		Handle:           handle,
		Email:            in.Email,
		CredentialDigest: digest,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "account registered", "handle", created.Handle, "generated", in.Handle == "")
	return redact(created), nil
}

// Authenticate verifies the password for email and returns a signed token.
// Unknown email and wrong password both yield common.ErrInvalidCredential.
// A locked account yields a *common.LockedError regardless of the password.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validator.Struct(validation.Login{Email: email, Password: password}); err != nil {
		return nil, err
	}

	a, err := s.store.FindByEmailForAuthentication(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		_, _ = s.hasher.Verify(password, s.dummyDigest)
		return nil, common.ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.tracker.Check(a, now); err != nil {
		s.log.Info(ctx, "authentication refused, account locked", "handle", a.Handle)
		return nil, err
	}

	ok, err := s.hasher.Verify(password, a.CredentialDigest)
	if err != nil {
		s.log.Warn(ctx, "stored digest not verifiable", "handle", a.Handle, "error", err)
	}

	if !ok {
		patch, locked := s.tracker.Failure(a, now)
		if err := s.update(ctx, a.Handle, patch); err != nil {
			return nil, err
		}
		if locked {
			s.log.Warn(ctx, "account locked after failed attempts", "handle", a.Handle)
			return nil, s.tracker.LockError(now)
		}
		return nil, common.ErrInvalidCredential
	}

	if err := s.update(ctx, a.Handle, s.tracker.Success(a)); err != nil {
		return nil, err
	}

	token, err := s.signer.Sign(a.ID, a.Handle, a.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: sign token: %w", common.ErrInternal, err)
	}

	a.FailedAttempts = 0
	a.LockedUntil = nil
	return &AuthResult{Token: token, Account: redact(a)}, nil
}

func (s *AccountService) update(ctx context.Context, handle string, patch models.AccountPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	patch.UpdatedAt = s.now()
	if _, err := s.store.UpdateByHandle(ctx, handle, patch); err != nil {
		return err
	}
	return nil
}

// FetchByHandle returns the account with handle from either shape.
func (s *AccountService) FetchByHandle(ctx context.Context, handle string) (*models.Account, error) {
	if err := s.validator.Struct(validation.Lookup{Handle: handle}); err != nil {
		return nil, err
	}
	a, err := s.store.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return redact(a), nil
}

// DeleteByHandle removes the account from whichever shape holds it and
// returns its pre-deletion values.
func (s *AccountService) DeleteByHandle(ctx context.Context, handle string) (*models.Account, error) {
	if err := s.validator.Struct(validation.Lookup{Handle: handle}); err != nil {
		return nil, err
	}
	a, err := s.store.DeleteByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "account deleted", "handle", a.Handle, "source", a.Source.String())
	return redact(a), nil
}

// List returns structured accounts, or legacy ones when none are structured.
func (s *AccountService) List(ctx context.Context) ([]*models.Account, error) {
	list, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i] = redact(list[i])
	}
	return list, nil
}

// Count is approximate while migrated entries remain in the legacy list.
func (s *AccountService) Count(ctx context.Context) (int64, error) {
	return s.store.CountAll(ctx)
}

// Migrate runs one migration pass. A non-nil report accompanies a
// *migration.MigrationError when some entries failed.
func (s *AccountService) Migrate(ctx context.Context) (*models.MigrationReport, error) {
	return s.engine.Migrate(ctx)
}

func (s *AccountService) MigrationStatus(ctx context.Context) (*models.MigrationStatus, error) {
	return s.engine.Status(ctx)
}

func (s *AccountService) Backup(ctx context.Context) (*models.BackupResult, error) {
	return s.engine.Backup(ctx)
}

// RestoreLegacy replaces the legacy users list with a Backup snapshot.
func (s *AccountService) RestoreLegacy(ctx context.Context, snapshot []byte) (int, error) {
	return s.engine.Restore(ctx, snapshot)
}

// CleanupLegacy drops the legacy users list; see migration.Engine.Cleanup.
func (s *AccountService) CleanupLegacy(ctx context.Context, force bool) (int, error) {
	return s.engine.Cleanup(ctx, force)
}

// VerifyToken returns the claims of a token issued by this service.
func (s *AccountService) VerifyToken(token string) (*auth.Claims, error) {
	return s.signer.Parse(token)
}

// redact returns a copy of a without the credential digest.
func redact(a *models.Account) *models.Account {
	c := *a
	c.CredentialDigest = ""
	return &c
}
