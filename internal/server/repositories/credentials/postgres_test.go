package credentials

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/cryptox"
	"github.com/dmitrijs2005/homedock/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func testEnvelope() cryptox.Envelope {
	return cryptox.Envelope{
		Nonce:      make([]byte, cryptox.NonceSize),
		Tag:        make([]byte, cryptox.TagSize),
		Ciphertext: []byte("ct"),
	}
}

func TestCreate_StoresEnvelopeText(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	env := testEnvelope()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+credentials\s*\(id,\s*user_id,\s*name,\s*service_type,\s*secret,\s*metadata`).
		WithArgs(sqlmock.AnyArg(), "u1", "Plex", "plex", env.String(), `{"url":"http://plex.lan"}`, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := repo.Create(context.Background(), &models.Credential{
		UserID: "u1", Name: "Plex", ServiceType: "plex", Secret: env,
		Metadata: models.Metadata{"url": "http://plex.lan"},
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if c.ID == "" {
		t.Fatal("id must be assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestList_ScopedAndWithoutSecret(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*user_id,\s*name,\s*service_type,\s*metadata,.*WHERE\s+user_id\s*=\s*\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "service_type", "metadata", "created_at", "updated_at"}).
			AddRow("c1", "u1", "CalDAV", "caldav", nil, now, now))

	got, err := repo.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 1 || !got[0].Secret.IsZero() || got[0].Metadata != nil {
		t.Fatalf("unexpected list: %+v", got[0])
	}
}

func TestGet_OwnerScoped(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT.*FROM\s+credentials\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2$`
	now := time.Now()
	env := testEnvelope()

	mock.ExpectQuery(q).WithArgs("c1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "service_type", "secret", "metadata", "created_at", "updated_at"}).
			AddRow("c1", "u1", "Plex", "plex", env.String(), `{}`, now, now))
	mock.ExpectQuery(q).WithArgs("c1", "u2").WillReturnError(sql.ErrNoRows)

	got, err := repo.Get(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Secret.String() != env.String() {
		t.Fatalf("envelope not scanned: %q", got.Secret.String())
	}

	if _, err := repo.Get(context.Background(), "u2", "c1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("foreign owner must see ErrorNotFound, got %v", err)
	}
}

func TestUpdateDelete_ForeignOwnerNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+credentials.*WHERE\s+id\s*=\s*\$6\s+AND\s+user_id\s*=\s*\$7$`).
		WithArgs("Plex", "plex", sqlmock.AnyArg(), nil, sqlmock.AnyArg(), "c1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+credentials\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2$`).
		WithArgs("c1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE\s+FROM\s+credentials`).
		WithArgs("c1", "u1").
		WillReturnError(errors.New("disk full"))

	err := repo.Update(context.Background(), &models.Credential{ID: "c1", UserID: "u2", Name: "Plex", ServiceType: "plex", Secret: testEnvelope()})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("Update: want ErrorNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), "u2", "c1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("Delete: want ErrorNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), "u1", "c1"); err == nil || !regexp.MustCompile(`db error: .*disk full`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
