package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"quorum/internal/geography"
	"quorum/internal/membership/models"
	"quorum/internal/membership/sequence"
	"quorum/internal/membership/service/mocks"
	"quorum/internal/membership/store"
	"quorum/internal/payment"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/sentinel"
)

func pendingSnapshot(t *testing.T) *models.Membership {
	t.Helper()
	m, err := models.NewMembership(id.NewMemberID(), id.TenantID(uuid.New()), "KDA", "ORD",
		models.PersonalInfo{FullName: "Ada Wanjiru", Email: "ada@example.org", Phone: "+254700000001"},
		nil, time.Now())
	require.NoError(t, err)
	m.ApplySubmit(models.GeographyRef{Raw: "text:Ward5"}, time.Now())
	m.ClearPendingEvents()
	m.Version = 1
	return m
}

func passthroughTx(mockTx *mocks.MockTxRunner) {
	mockTx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()
}

func TestApprove_GeographyTimeoutIsRetryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	snapshot := pendingSnapshot(t)
	mockRepo := mocks.NewMockRepository(ctrl)
	mockGeo := mocks.NewMockGeographyLookup(ctrl)
	mockRepo.EXPECT().FindByID(gomock.Any(), snapshot.ID).Return(snapshot, nil)
	mockRepo.EXPECT().IdentityInUse(gomock.Any(), snapshot.TenantID, snapshot.Person, snapshot.ID).Return(false, nil)
	mockGeo.EXPECT().Resolve(gomock.Any(), "text:Ward5").Return(geography.Node{}, context.DeadlineExceeded)

	orch := New(mockRepo, sequence.NewInMemory(), store.NopTx{}, mockGeo, payment.NewRecorder(), &recordingSink{})

	_, err := orch.Approve(context.Background(), snapshot.ID, id.ActorID(uuid.New()))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestApprove_GeographyOutageIsRetryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	snapshot := pendingSnapshot(t)
	mockRepo := mocks.NewMockRepository(ctrl)
	mockGeo := mocks.NewMockGeographyLookup(ctrl)
	mockRepo.EXPECT().FindByID(gomock.Any(), snapshot.ID).Return(snapshot, nil)
	mockRepo.EXPECT().IdentityInUse(gomock.Any(), snapshot.TenantID, snapshot.Person, snapshot.ID).Return(false, nil).AnyTimes()
	mockGeo.EXPECT().Resolve(gomock.Any(), "text:Ward5").Return(geography.Node{}, sentinel.ErrUnavailable)

	orch := New(mockRepo, sequence.NewInMemory(), store.NopTx{}, mockGeo, payment.NewRecorder(), &recordingSink{})

	_, err := orch.Approve(context.Background(), snapshot.ID, id.ActorID(uuid.New()))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestApprove_StaleSaveIsConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	snapshot := pendingSnapshot(t)
	mockRepo := mocks.NewMockRepository(ctrl)
	mockGeo := mocks.NewMockGeographyLookup(ctrl)
	mockTx := mocks.NewMockTxRunner(ctrl)
	passthroughTx(mockTx)
	mockRepo.EXPECT().FindByID(gomock.Any(), snapshot.ID).Return(snapshot, nil)
	mockRepo.EXPECT().IdentityInUse(gomock.Any(), snapshot.TenantID, snapshot.Person, snapshot.ID).Return(false, nil)
	mockGeo.EXPECT().Resolve(gomock.Any(), "text:Ward5").
		Return(geography.Node{ID: "geo-ward-5", Path: "KE/Nairobi/Westlands/Ward5", Level: id.GeoLevelWard}, nil)
	mockRepo.EXPECT().Save(gomock.Any(), gomock.Any(), snapshot.Version).Return(sentinel.ErrConflict)

	orch := New(mockRepo, sequence.NewInMemory(), mockTx, mockGeo, payment.NewRecorder(), &recordingSink{})

	_, err := orch.Approve(context.Background(), snapshot.ID, id.ActorID(uuid.New()))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestPublishFailureNeverFailsTheCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := store.NewInMemory()
	snapshot := pendingSnapshot(t)
	snapshot.Version = 0
	require.NoError(t, repo.Create(context.Background(), snapshot))

	mockSink := mocks.NewMockEventSink(ctrl)
	mockSink.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(context.Canceled)

	directory := geography.NewDirectory()
	directory.Add(geography.Node{ID: "geo-ward-5", Path: "KE/Nairobi/Westlands/Ward5", Level: id.GeoLevelWard})

	orch := New(repo, sequence.NewInMemory(), store.NopTx{}, directory, payment.NewRecorder(), mockSink)

	m, err := orch.Approve(context.Background(), snapshot.ID, id.ActorID(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, models.StateApproved, m.State)

	// the save committed regardless of the sink refusal
	stored, err := repo.FindByID(context.Background(), snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateApproved, stored.State)
	// pending events stay on the command's copy for the caller to inspect
	assert.Len(t, m.PendingEvents(), 1)
}
