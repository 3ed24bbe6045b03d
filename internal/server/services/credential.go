package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/cryptox"
	"github.com/dmitrijs2005/homedock/internal/dbx"
	"github.com/dmitrijs2005/homedock/internal/logging"
	"github.com/dmitrijs2005/homedock/internal/server/metrics"
	"github.com/dmitrijs2005/homedock/internal/server/models"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/homedock/internal/validation"
)

type CredentialInput struct {
	Name        string         `json:"name" validate:"required,max=128"`
	ServiceType string         `json:"serviceType" validate:"required,max=64"`
	Data        any            `json:"data" validate:"required"`
	Metadata    map[string]any `json:"metadata"`
}

// CredentialPatch updates a credential. Nil fields keep their stored value.
type CredentialPatch struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=128"`
	ServiceType *string        `json:"serviceType" validate:"omitempty,min=1,max=64"`
	Data        any            `json:"data"`
	Metadata    map[string]any `json:"metadata"`
}

// DecryptedCredential is a credential with its secret payload opened.
type DecryptedCredential struct {
	Credential *models.Credential
	Data       any
}

// TestResult reports whether a stored secret still decrypts.
type TestResult struct {
	Success bool
	Message string
}

// CredentialService stores third-party secrets encrypted with the vault.
// Every operation is scoped by owner; another user's credential is reported
// as common.ErrorNotFound.
type CredentialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *cryptox.Vault
	metrics     *metrics.Metrics
	log         logging.Logger
}

func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, vault *cryptox.Vault, mtr *metrics.Metrics, log logging.Logger) *CredentialService {
	return &CredentialService{
		db:          db,
		repomanager: m,
		vault:       vault,
		metrics:     mtr,
		log:         log.With("module", "credentials"),
	}
}

func (s *CredentialService) Create(ctx context.Context, ownerID string, in CredentialInput) (*models.Credential, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	env, err := s.vault.EncryptJSON(in.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: secret must be JSON", common.ErrValidation)
	}

	c, err := s.repomanager.Credentials(s.db).Create(ctx, &models.Credential{
		UserID:      ownerID,
		Name:        in.Name,
		ServiceType: in.ServiceType,
		Secret:      env,
		Metadata:    models.Metadata(in.Metadata),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "credential created", "credential_id", c.ID, "service_type", c.ServiceType)
	return summary(c), nil
}

// List returns the owner's credentials without secrets.
func (s *CredentialService) List(ctx context.Context, ownerID string) ([]*models.Credential, error) {
	return s.repomanager.Credentials(s.db).List(ctx, ownerID)
}

func (s *CredentialService) Get(ctx context.Context, ownerID, id string) (*DecryptedCredential, error) {
	c, data, err := s.open(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, common.ErrTamperedOrCorrupt) {
			s.metrics.VaultFailure("get")
			s.log.Warn(ctx, "credential failed to decrypt", "credential_id", id)
		}
		return nil, err
	}
	return &DecryptedCredential{Credential: summary(c), Data: data}, nil
}

func (s *CredentialService) Update(ctx context.Context, ownerID, id string, in CredentialPatch) (*models.Credential, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var out *models.Credential
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Credentials(tx)

		c, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			c.Name = *in.Name
		}
		if in.ServiceType != nil {
			c.ServiceType = *in.ServiceType
		}
		if in.Metadata != nil {
			c.Metadata = models.Metadata(in.Metadata)
		}
		if in.Data != nil {
			env, err := s.vault.EncryptJSON(in.Data)
			if err != nil {
				return fmt.Errorf("%w: secret must be JSON", common.ErrValidation)
			}
			c.Secret = env
		}

		if err := repo.Update(ctx, c); err != nil {
			return err
		}
		out = summary(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CredentialService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repomanager.Credentials(s.db).Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.log.Info(ctx, "credential deleted", "credential_id", id)
	return nil
}

// Test decrypts the stored secret without returning it. A secret that no
// longer decrypts is a failed test, not an error.
func (s *CredentialService) Test(ctx context.Context, ownerID, id string) (*TestResult, error) {
	if _, _, err := s.open(ctx, ownerID, id); err != nil {
		if errors.Is(err, common.ErrTamperedOrCorrupt) {
			s.metrics.VaultFailure("test")
			s.log.Warn(ctx, "credential failed to decrypt", "credential_id", id)
			return &TestResult{Success: false, Message: "stored secret cannot be decrypted"}, nil
		}
		return nil, err
	}
	return &TestResult{Success: true, Message: "stored secret decrypts"}, nil
}

// open loads and decrypts a credential. A malformed stored envelope fails
// while the row is scanned; both that and a failed decryption are reported
// as a bare common.ErrTamperedOrCorrupt.
func (s *CredentialService) open(ctx context.Context, ownerID, id string) (*models.Credential, any, error) {
	c, err := s.repomanager.Credentials(s.db).Get(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, common.ErrTamperedOrCorrupt) {
			return nil, nil, common.ErrTamperedOrCorrupt
		}
		return nil, nil, err
	}

	var data any
	if err := s.vault.DecryptJSON(c.Secret, &data); err != nil {
		if errors.Is(err, common.ErrTamperedOrCorrupt) {
			return nil, nil, common.ErrTamperedOrCorrupt
		}
		return nil, nil, err
	}
	return c, data, nil
}

// summary strips the envelope.
func summary(c *models.Credential) *models.Credential {
	out := *c
	out.Secret = cryptox.Envelope{}
	return &out
}
