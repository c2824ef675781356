package communities

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/openheritage/memoryvault/internal/common"
	"github.com/openheritage/memoryvault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+cultural_communities\b.*RETURNING\s+member_count,\s+created_at,\s+updated_at\s*$`).
		WithArgs("c1", "Quechua Weavers", []byte(`["textiles","andean"]`), nil, false, 0).
		WillReturnRows(sqlmock.NewRows([]string{"member_count", "created_at", "updated_at"}).AddRow(0, now, now))

	c, err := repo.Create(context.Background(), &models.CulturalCommunity{
		ID:            "c1",
		Name:          "Quechua Weavers",
		CulturalFocus: []string{"textiles", "andean"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.MemberCount != 0 {
		t.Fatalf("member count should start at 0, got %d", c.MemberCount)
	}
}

func TestGetByID_DecodesLocation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "name", "cultural_focus", "location", "member_count",
		"verified", "verification_level", "created_at", "updated_at",
	}).AddRow("c1", "Quechua Weavers", []byte(`["textiles"]`),
		[]byte(`{"country":"PE","region":"Cusco"}`), 12, true, 1, now, now)

	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+cultural_communities\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("c1").
		WillReturnRows(rows)

	c, err := repo.GetByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Location == nil || c.Location.Country != "PE" || c.Location.Region != "Cusco" {
		t.Fatalf("location not decoded: %+v", c.Location)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+cultural_communities\b`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMembershipsOf(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"community_id"}).AddRow("c1").AddRow("c2")
	mock.ExpectQuery(`^SELECT\s+community_id\s+FROM\s+community_members\s+WHERE\s+user_id\s*=\s*\$1$`).
		WithArgs("u1").
		WillReturnRows(rows)

	got, err := repo.MembershipsOf(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "c1" || got[1] != "c2" {
		t.Fatalf("unexpected memberships: %v", got)
	}
}

func TestAddMember_IncrementsOnInsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+community_members\b.*ON\s+CONFLICT\s+DO\s+NOTHING$`).
		WithArgs("c1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^UPDATE\s+cultural_communities\s+SET\s+member_count\s*=\s*member_count\s*\+\s*1\b`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AddMember(context.Background(), "c1", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddMember_NoopWhenAlreadyMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+community_members\b`).
		WithArgs("c1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.AddMember(context.Background(), "c1", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No UPDATE expected: the count must not move for a repeat add.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemoveMember_DecrementsOnDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+community_members\b`).
		WithArgs("c1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^UPDATE\s+cultural_communities\s+SET\s+member_count\s*=\s*GREATEST\(member_count\s*-\s*1,\s*0\)`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveMember(context.Background(), "c1", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
