package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-sync/internal/models"
)

func TestRoleRepositoryAssignCarriesProvenance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectExec("INSERT INTO role_assignments").
		WithArgs("role-student", "user-1", "course-1", models.ProvenanceComponent, "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Assign(context.Background(), models.RoleAssignment{
		RoleID: "role-student", UserID: "user-1", ContextID: "course-1", ItemID: "inst-1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepositoryListOrphaned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	rows := sqlmock.NewRows([]string{"role_id", "user_id", "context_id", "component", "item_id"}).
		AddRow("role-student", "user-1", "course-1", models.ProvenanceComponent, "inst-1")
	mock.ExpectQuery("SELECT ra.role_id, ra.user_id, ra.context_id, ra.component, ra.item_id").
		WithArgs(models.ProvenanceComponent, models.InstanceStatusEnabled, "role-student").
		WillReturnRows(rows)

	orphans, err := repo.ListOrphaned(context.Background(), "role-student")
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, models.ProvenanceComponent, orphans[0].Component)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepositoryListOrphanedResolvesEmptyRoleID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	// an instance with an empty role_id grants the deployment default; the
	// join must compare against that default, not the literal empty string
	mock.ExpectQuery(regexp.QuoteMeta(`COALESCE(NULLIF(si.role_id, ''), $3) = ra.role_id`)).
		WithArgs(models.ProvenanceComponent, models.InstanceStatusEnabled, "role-default").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "user_id", "context_id", "component", "item_id"}))

	orphans, err := repo.ListOrphaned(context.Background(), "role-default")
	require.NoError(t, err)
	require.Empty(t, orphans)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepositoryDeleteAllForInstance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_assignments WHERE component = $1 AND item_id = $2")).
		WithArgs(models.ProvenanceComponent, "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	removed, err := repo.DeleteAllForInstance(context.Background(), "inst-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
