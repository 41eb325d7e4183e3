package logic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blues/carbonledger/internal/logic"
	"github.com/blues/carbonledger/internal/model"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SubmitProjectCreation(ctx context.Context, from string, meta model.ProjectMetadata) (uint64, error) {
	args := m.Called(ctx, from, meta)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockGateway) SubmitApproval(ctx context.Context, from string, id, credits uint64) error {
	return m.Called(ctx, from, id, credits).Error(0)
}

func (m *mockGateway) SubmitRejection(ctx context.Context, from string, id uint64) error {
	return m.Called(ctx, from, id).Error(0)
}

func (m *mockGateway) SubmitIssuance(ctx context.Context, from string, id uint64) error {
	return m.Called(ctx, from, id).Error(0)
}

func (m *mockGateway) SubmitListingCreation(ctx context.Context, from string, amount, price uint64) (uint64, error) {
	args := m.Called(ctx, from, amount, price)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockGateway) SubmitBuy(ctx context.Context, from string, id uint64) error {
	return m.Called(ctx, from, id).Error(0)
}

func (m *mockGateway) SubmitCancel(ctx context.Context, from string, id uint64) error {
	return m.Called(ctx, from, id).Error(0)
}

func (m *mockGateway) QueryProjects(ctx context.Context) ([]model.Project, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Project), args.Error(1)
}

func (m *mockGateway) QueryListings(ctx context.Context) ([]model.Listing, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Listing), args.Error(1)
}

func (m *mockGateway) QueryBalance(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}

func TestProjectRegistry_RefreshSkipsEmptySlots(t *testing.T) {
	gw := &mockGateway{}
	gw.On("QueryProjects", mock.Anything).Return([]model.Project{
		{ID: 0, Status: model.ProjectStatus("")},
		{ID: 1, Name: "Rimba Raya", Status: model.ProjectStatusPending},
		{ID: 2, Name: "Katingan", Status: model.ProjectStatusIssued, Credits: 9},
	}, nil)

	r := logic.NewProjectRegistry(gw)
	require.NoError(t, r.Refresh(context.Background()))

	projects := r.List()
	require.Len(t, projects, 2)
	assert.Equal(t, uint64(1), projects[0].ID)
	assert.Equal(t, uint64(2), projects[1].ID)
	_, err := r.Get(0)
	require.ErrorIs(t, err, model.ErrProjectNotFound)
	gw.AssertExpectations(t)
}

func TestProjectRegistry_RefreshReplacesCollection(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{}
	gw.On("QueryProjects", mock.Anything).Return([]model.Project{
		{ID: 4, Status: model.ProjectStatusPending},
	}, nil).Once()
	gw.On("QueryProjects", mock.Anything).Return([]model.Project{
		{ID: 5, Status: model.ProjectStatusVerified, Credits: 30},
	}, nil).Once()

	r := logic.NewProjectRegistry(gw)
	require.NoError(t, r.Refresh(ctx))
	require.NoError(t, r.Refresh(ctx))

	projects := r.List()
	require.Len(t, projects, 1)
	assert.Equal(t, uint64(5), projects[0].ID)
}

func TestProjectRegistry_CheckFailsBeforeGateway(t *testing.T) {
	gw := &mockGateway{}
	gw.On("QueryProjects", mock.Anything).Return([]model.Project{
		{ID: 1, Status: model.ProjectStatusIssued, Credits: 10},
	}, nil)

	r := logic.NewProjectRegistry(gw)
	require.NoError(t, r.Refresh(context.Background()))

	err := r.Approve(context.Background(), "v", 1, 10)
	require.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.ErrorContains(t, err, "already issued")
	_, err = r.Issue(context.Background(), "v", 1)
	require.ErrorIs(t, err, model.ErrInvalidTransition)
	gw.AssertNotCalled(t, "SubmitApproval", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "SubmitIssuance", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarketplaceEscrow_CheckOrder(t *testing.T) {
	gw := &mockGateway{}
	gw.On("QueryListings", mock.Anything).Return([]model.Listing{
		{ID: 0, Seller: "a", Amount: 5, PricePerToken: 2, Active: true},
		{ID: 1, Seller: "a", Active: false},
	}, nil)

	m := logic.NewMarketplaceEscrow(gw)
	require.NoError(t, m.Refresh(context.Background()))

	_, err := m.CheckBuy("a", 0)
	require.ErrorIs(t, err, model.ErrInvalidOperation)
	_, err = m.CheckBuy("b", 1)
	require.ErrorIs(t, err, model.ErrAlreadyConsumed)
	_, err = m.CheckCancel("b", 0)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = m.CheckCancel("b", 7)
	require.ErrorIs(t, err, model.ErrListingNotFound)

	l, err := m.CheckBuy("b", 0)
	require.NoError(t, err)
	total, ok := l.TotalCost()
	require.True(t, ok)
	assert.Equal(t, uint64(10), total)

	assert.Len(t, m.Active(), 1)
	assert.Len(t, m.BySeller("a"), 2)

	var stats model.Stats
	m.Stats(&stats)
	assert.Equal(t, 2, stats.TotalListings)
	assert.Equal(t, 1, stats.ActiveListings)
	assert.Equal(t, uint64(5), stats.TokensListed)
}

func TestMarketplaceEscrow_FailedBuyKeepsListingActive(t *testing.T) {
	ctx := context.Background()
	gw := &mockGateway{}
	gw.On("QueryListings", mock.Anything).Return([]model.Listing{
		{ID: 0, Seller: "a", Amount: 5, PricePerToken: 2, Active: true},
	}, nil)
	gw.On("SubmitBuy", mock.Anything, "b", uint64(0)).Return(assert.AnError).Once()

	m := logic.NewMarketplaceEscrow(gw)
	require.NoError(t, m.Refresh(ctx))

	_, err := m.Buy(ctx, "b", 0)
	require.ErrorIs(t, err, assert.AnError)

	l, err := m.Get(0)
	require.NoError(t, err)
	assert.True(t, l.Active)
	assert.Equal(t, uint64(5), l.Amount)
	gw.AssertExpectations(t)
}
