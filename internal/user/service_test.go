package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	args := m.Called(ctx, externalID)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) UpsertByProvider(ctx context.Context, externalID string, identity domain.ExternalIdentity) (*domain.User, error) {
	args := m.Called(ctx, externalID, identity)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) UpdateDifficulty(ctx context.Context, externalID string, level int) (*domain.User, error) {
	args := m.Called(ctx, externalID, level)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, externalID string, update domain.ProfileUpdate) (*domain.User, error) {
	args := m.Called(ctx, externalID, update)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

var kakaoIdentity = domain.ExternalIdentity{
	Provider:        "kakao",
	ProviderID:      "4242",
	DisplayName:     "Kim",
	ProfileImageURL: "https://k/img.png",
}

func TestResolveOrCreate_GeneratesExternalID(t *testing.T) {
	repo := new(mockUserRepository)
	now := time.Now()
	repo.On("UpsertByProvider", mock.Anything, mock.AnythingOfType("string"), kakaoIdentity).
		Return(&domain.User{ID: 1, ExternalID: "generated", Name: "Kim", CreatedAt: now, UpdatedAt: now}, nil).
		Once()

	svc := NewService(repo, testLogger())
	user, err := svc.ResolveOrCreate(context.Background(), kakaoIdentity)
	require.NoError(t, err)
	assert.Equal(t, "generated", user.ExternalID)

	externalID := repo.Calls[0].Arguments.String(1)
	assert.Len(t, externalID, 36)
	repo.AssertExpectations(t)
}

func TestResolveOrCreate_RetriesTransientFailure(t *testing.T) {
	repo := new(mockUserRepository)
	repo.On("UpsertByProvider", mock.Anything, mock.Anything, kakaoIdentity).
		Return(nil, apperrors.NewDatabaseError("upsert user", errors.New("deadlock detected"))).
		Once()
	repo.On("UpsertByProvider", mock.Anything, mock.Anything, kakaoIdentity).
		Return(&domain.User{ExternalID: "u1"}, nil).
		Once()

	user, err := NewService(repo, testLogger()).ResolveOrCreate(context.Background(), kakaoIdentity)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ExternalID)
	repo.AssertNumberOfCalls(t, "UpsertByProvider", 2)
}

func TestResolveOrCreate_RequiresProviderID(t *testing.T) {
	repo := new(mockUserRepository)

	_, err := NewService(repo, testLogger()).ResolveOrCreate(context.Background(), domain.ExternalIdentity{DisplayName: "x"})
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.Code(err))
	repo.AssertNotCalled(t, "UpsertByProvider", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetProfile_NotFound(t *testing.T) {
	repo := new(mockUserRepository)
	repo.On("FindByExternalID", mock.Anything, "ghost").Return(nil, repository.ErrNotFound)

	_, err := NewService(repo, testLogger()).GetProfile(context.Background(), "ghost")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.Code(err))
}

func TestUpdateProfile_IgnoresBlankName(t *testing.T) {
	repo := new(mockUserRepository)
	image := "https://new/img.png"
	blank := "   "

	repo.On("UpdateProfile", mock.Anything, "u1", domain.ProfileUpdate{ProfileImage: &image}).
		Return(&domain.User{ExternalID: "u1", Name: "Kim", ProfileImage: image}, nil)

	user, err := NewService(repo, testLogger()).UpdateProfile(context.Background(), "u1", domain.ProfileUpdate{Name: &blank, ProfileImage: &image})
	require.NoError(t, err)
	assert.Equal(t, image, user.ProfileImage)
	repo.AssertExpectations(t)
}

func TestUpdateProfile_RejectsOverlongName(t *testing.T) {
	repo := new(mockUserRepository)
	long := strings.Repeat("가", MaxNameLength+1)
	exact := strings.Repeat("가", MaxNameLength)

	repo.On("UpdateProfile", mock.Anything, "u1", domain.ProfileUpdate{Name: &exact}).
		Return(&domain.User{ExternalID: "u1", Name: exact}, nil)

	svc := NewService(repo, testLogger())

	_, err := svc.UpdateProfile(context.Background(), "u1", domain.ProfileUpdate{Name: &long})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidArgument))

	user, err := svc.UpdateProfile(context.Background(), "u1", domain.ProfileUpdate{Name: &exact})
	require.NoError(t, err)
	assert.Equal(t, exact, user.Name)
	repo.AssertNumberOfCalls(t, "UpdateProfile", 1)
}

func TestUpdateProfile_NothingToChangeReadsProfile(t *testing.T) {
	repo := new(mockUserRepository)
	repo.On("FindByExternalID", mock.Anything, "u1").Return(&domain.User{ExternalID: "u1", Name: "Kim"}, nil)

	user, err := NewService(repo, testLogger()).UpdateProfile(context.Background(), "u1", domain.ProfileUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Kim", user.Name)
	repo.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}
