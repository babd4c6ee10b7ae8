package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-segments/internal/domain"
)

var legacyRowColumns = []string{"id", "seller_id", "bought_products", "not_bought_products",
	"paid_more_than_cents", "paid_less_than_cents", "created_after", "created_before", "bought_from"}

func TestLegacyRepoListLegacy(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLegacyRepo(db)

	mock.ExpectQuery("FROM installments").WillReturnRows(sqlmock.NewRows(legacyRowColumns).
		AddRow("7", "seller-1", "{p1,p2}", nil, int64(1000), nil, now, nil, "US"))
	mock.ExpectQuery("FROM workflows").WillReturnRows(sqlmock.NewRows(legacyRowColumns).
		AddRow("42", "seller-2", nil, "{p3}", nil, int64(500), nil, now, ""))

	items, err := repo.ListLegacy(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	inst := items[0]
	assert.Equal(t, domain.OwnerRef{Kind: domain.OwnerInstallment, ID: "7"}, inst.Owner)
	assert.Equal(t, []string{"p1", "p2"}, inst.BoughtProducts)
	require.NotNil(t, inst.PaidMoreThanCents)
	assert.Equal(t, int64(1000), *inst.PaidMoreThanCents)
	assert.Nil(t, inst.PaidLessThanCents)
	require.NotNil(t, inst.CreatedAfter)
	assert.Equal(t, "US", inst.BoughtFrom)

	wf := items[1]
	assert.Equal(t, domain.OwnerRef{Kind: domain.OwnerWorkflow, ID: "42"}, wf.Owner)
	assert.Equal(t, []string{"p3"}, wf.NotBoughtProducts)
	require.NotNil(t, wf.CreatedBefore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLegacyRepoCreateOwnedGroup(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLegacyRepo(db)

	g := &domain.FilterGroup{
		ID: "grp-1", SellerID: "seller-1", Name: "Legacy Filters for Workflow 42",
		Owner: domain.OwnerRef{Kind: domain.OwnerWorkflow, ID: "42"}, CreatedAt: now,
		Filters: []domain.Filter{{ID: "flt-1", SellerID: "seller-1", GroupID: "grp-1",
			FilterType: domain.FilterLocation, Config: domain.FilterConfig{"operator": "is", "country": "US"}, CreatedAt: now}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audience_member_filter_groups").
		WithArgs("grp-1", "seller-1", g.Name, "workflow", "42", 0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audience_member_filters").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateOwnedGroup(context.Background(), g))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("workflow", "42").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	owned, err := repo.HasOwnedGroups(context.Background(), g.Owner)
	require.NoError(t, err)
	assert.True(t, owned)
	assert.NoError(t, mock.ExpectationsWereMet())
}
