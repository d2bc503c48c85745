package preference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/repository"
	"github.com/Proton-105/profile-service/internal/usercache"
	"github.com/Proton-105/profile-service/pkg/redis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubUsers struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	findCalls int
	failFind  error
}

func (s *stubUsers) FindByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.failFind != nil {
		return nil, s.failFind
	}
	u, ok := s.users[externalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *stubUsers) UpsertByProvider(context.Context, string, domain.ExternalIdentity) (*domain.User, error) {
	return nil, errors.New("not used")
}

func (s *stubUsers) UpdateDifficulty(_ context.Context, externalID string, level int) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[externalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.DifficultyLevel = &level
	copied := *u
	return &copied, nil
}

func (s *stubUsers) UpdateProfile(context.Context, string, domain.ProfileUpdate) (*domain.User, error) {
	return nil, errors.New("not used")
}

func (s *stubUsers) FindCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCalls
}

type stubCategories struct {
	mu        sync.Mutex
	rows      map[int64][]domain.CategorySelection
	listCalls int
	failList  error
	failSave  error
}

func (s *stubCategories) ListByUser(_ context.Context, userID int64) ([]domain.CategorySelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.failList != nil {
		return nil, s.failList
	}
	return append([]domain.CategorySelection(nil), s.rows[userID]...), nil
}

func (s *stubCategories) ReplaceForUser(_ context.Context, userID int64, selections []domain.CategorySelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	seen := make(map[domain.CategorySelection]bool)
	for _, sel := range selections {
		if seen[sel] {
			return errors.New("unique violation")
		}
		seen[sel] = true
	}
	s.rows[userID] = append([]domain.CategorySelection(nil), selections...)
	return nil
}

type publishedEvent struct {
	UserID     string
	Categories domain.CategoryMap
	Difficulty *int
	EventType  domain.EventType
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, userID string, categories domain.CategoryMap, difficulty *int, eventType domain.EventType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID, categories, difficulty, eventType})
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type fixture struct {
	mr         *miniredis.Miniredis
	users      *stubUsers
	categories *stubCategories
	publisher  *recordingPublisher
	service    *Service
}

func intPtr(v int) *int { return &v }

func setupService(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		mr: mr,
		users: &stubUsers{users: map[string]*domain.User{
			"u1": {ID: 1, ExternalID: "u1", Name: "Kim", DifficultyLevel: intPtr(2)},
			"u2": {ID: 2, ExternalID: "u2", Name: "Lee"},
		}},
		categories: &stubCategories{rows: map[int64][]domain.CategorySelection{}},
		publisher:  &recordingPublisher{},
	}
	cache := usercache.NewCache(client, 24*time.Hour, testLogger())
	f.service = NewService(f.users, f.categories, cache, f.publisher, 2, testLogger())

	return f
}

func TestGetDifficulty_PopulatesCacheFromStore(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	level, err := f.service.GetDifficulty(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, 2, *level)
	assert.Equal(t, 1, f.users.FindCalls())

	f.users.failFind = errors.New("database is down")

	level, err = f.service.GetDifficulty(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, 2, *level)
	assert.Equal(t, 1, f.users.FindCalls())
	assert.Equal(t, 24*time.Hour, f.mr.TTL("user:difficulty:u1"))
}

func TestGetDifficulty_UnsetIsAbsentAndNotCached(t *testing.T) {
	f := setupService(t)

	level, err := f.service.GetDifficulty(context.Background(), "u2")
	require.NoError(t, err)
	assert.Nil(t, level)
	assert.False(t, f.mr.Exists("user:difficulty:u2"))
}

func TestGetDifficulty_StoreErrorPropagates(t *testing.T) {
	f := setupService(t)
	f.users.failFind = apperrors.NewDatabaseError("select user", errors.New("timeout"))

	_, err := f.service.GetDifficulty(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.Code(err))
}

func TestSetDifficulty_ReadableFromCacheAndStore(t *testing.T) {
	for _, v := range []int{1, 2, 3} {
		f := setupService(t)
		ctx := context.Background()

		_, err := f.service.SetDifficulty(ctx, "u2", intPtr(v))
		require.NoError(t, err)

		callsBefore := f.users.FindCalls()
		level, err := f.service.GetDifficulty(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, v, *level)
		assert.Equal(t, callsBefore, f.users.FindCalls(), "cache hit must not touch the store")

		f.mr.Del("user:difficulty:u2")

		level, err = f.service.GetDifficulty(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, v, *level)
		assert.Equal(t, callsBefore+1, f.users.FindCalls())
	}
}

func TestSetDifficulty_RejectsInvalidLevels(t *testing.T) {
	f := setupService(t)

	for _, level := range []*int{intPtr(0), intPtr(4), nil} {
		_, err := f.service.SetDifficulty(context.Background(), "u1", level)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.Code(err))
	}

	assert.Equal(t, 2, *f.users.users["u1"].DifficultyLevel)
	assert.Empty(t, f.publisher.Events())
}

func TestSetDifficulty_PublishesOneEventWithCategories(t *testing.T) {
	f := setupService(t)
	f.categories.rows[1] = []domain.CategorySelection{{Major: domain.MajorTravel, Minor: domain.MinorBackpacking}}

	_, err := f.service.SetDifficulty(context.Background(), "u1", intPtr(3))
	require.NoError(t, err)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, domain.EventTypeDifficulty, events[0].EventType)
	assert.Equal(t, 3, *events[0].Difficulty)
	assert.Equal(t, domain.CategoryMap{"TRAVEL": {"BACKPACKING"}}, events[0].Categories)
}

func TestSetCategories_DeduplicatesWithinRequest(t *testing.T) {
	f := setupService(t)

	saved, err := f.service.SetCategories(context.Background(), "u1", map[string][]string{
		"STUDY": {"CLASS_LISTENING", "CLASS_LISTENING", "ASSIGNMENT_EXAM"},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.CategorySelection{
		{Major: domain.MajorStudy, Minor: domain.MinorClassListening},
		{Major: domain.MajorStudy, Minor: domain.MinorAssignmentExam},
	}, f.categories.rows[1])
	assert.Equal(t, domain.CategoryMap{"STUDY": {"CLASS_LISTENING", "ASSIGNMENT_EXAM"}}, saved)

	got, err := f.service.GetCategories(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestSetCategories_FullReplacement(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.service.SetCategories(ctx, "u1", map[string][]string{"STUDY": {"CLASS_LISTENING"}, "TRAVEL": {"FAMILY_TRIP"}})
	require.NoError(t, err)
	_, err = f.service.SetCategories(ctx, "u1", map[string][]string{"BUSINESS": {"EMAIL_REPORT"}})
	require.NoError(t, err)

	assert.Equal(t, []domain.CategorySelection{{Major: domain.MajorBusiness, Minor: domain.MinorEmailReport}}, f.categories.rows[1])

	f.mr.FlushAll()
	got, err := f.service.GetCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryMap{"BUSINESS": {"EMAIL_REPORT"}}, got)
}

func TestSetCategories_EventCarriesDifficulty(t *testing.T) {
	t.Run("from cache", func(t *testing.T) {
		f := setupService(t)
		require.NoError(t, f.mr.Set("user:difficulty:u1", "3"))

		_, err := f.service.SetCategories(context.Background(), "u1", map[string][]string{"STUDY": {"CLASS_LISTENING"}})
		require.NoError(t, err)

		events := f.publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventTypeCategories, events[0].EventType)
		assert.Equal(t, 3, *events[0].Difficulty)
		assert.Equal(t, domain.CategoryMap{"STUDY": {"CLASS_LISTENING"}}, events[0].Categories)
	})

	t.Run("from store row", func(t *testing.T) {
		f := setupService(t)
		f.users.users["u1"].DifficultyLevel = intPtr(3)

		_, err := f.service.SetCategories(context.Background(), "u1", map[string][]string{"STUDY": {"CLASS_LISTENING"}})
		require.NoError(t, err)
		assert.Equal(t, 3, *f.publisher.Events()[0].Difficulty)
	})

	t.Run("configured default", func(t *testing.T) {
		f := setupService(t)
		f.service.SetDefaultDifficulty(1)

		_, err := f.service.SetCategories(context.Background(), "u2", map[string][]string{"STUDY": {"CLASS_LISTENING"}})
		require.NoError(t, err)
		assert.Equal(t, 1, *f.publisher.Events()[0].Difficulty)
	})
}

func TestSetCategories_InvalidInput(t *testing.T) {
	f := setupService(t)

	for _, input := range []map[string][]string{nil, {}, {"SPORTS": {"X"}}, {"STUDY": {"BACKPACKING"}}} {
		_, err := f.service.SetCategories(context.Background(), "u1", input)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.Code(err))
	}
	assert.Empty(t, f.publisher.Events())
}

func TestSetCategories_StoreFailureAborts(t *testing.T) {
	f := setupService(t)
	f.categories.failSave = apperrors.NewDatabaseError("insert categories", errors.New("disk full"))

	_, err := f.service.SetCategories(context.Background(), "u1", map[string][]string{"STUDY": {"CLASS_LISTENING"}})
	require.Error(t, err)
	assert.Empty(t, f.publisher.Events())
	assert.False(t, f.mr.Exists("user:categories:u1"))
}

func TestGetCategories_CachesStoreResult(t *testing.T) {
	f := setupService(t)
	f.categories.rows[1] = []domain.CategorySelection{{Major: domain.MajorDailyLife, Minor: domain.MinorHospitalVisit}}
	ctx := context.Background()

	first, err := f.service.GetCategories(ctx, "u1")
	require.NoError(t, err)

	f.categories.failList = errors.New("database is down")

	second, err := f.service.GetCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.categories.listCalls)
}

func TestUnknownUserIsNotFound(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.service.GetDifficulty(ctx, "ghost")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.Code(err))

	_, err = f.service.GetCategories(ctx, "ghost")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.Code(err))

	_, err = f.service.SetDifficulty(ctx, "ghost", intPtr(1))
	assert.Equal(t, apperrors.CodeNotFound, apperrors.Code(err))

	_, err = f.service.SetCategories(ctx, "ghost", map[string][]string{"STUDY": {"CLASS_LISTENING"}})
	assert.Equal(t, apperrors.CodeNotFound, apperrors.Code(err))

	_, err = f.service.GetSettings(ctx, "ghost")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.Code(err))

	assert.Empty(t, f.publisher.Events())
}

func TestCacheOutageFallsBackToStore(t *testing.T) {
	f := setupService(t)
	f.mr.Close()
	ctx := context.Background()

	level, err := f.service.GetDifficulty(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, *level)

	_, err = f.service.SetDifficulty(ctx, "u1", intPtr(1))
	require.NoError(t, err)
	require.Len(t, f.publisher.Events(), 1)
}

func TestUpdateSettings_Both(t *testing.T) {
	f := setupService(t)

	settings, err := f.service.UpdateSettings(context.Background(), "u2", intPtr(3), map[string][]string{"TRAVEL": {"FRIEND_TRIP"}})
	require.NoError(t, err)
	assert.Equal(t, 3, *settings.DifficultyLevel)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeBoth, events[0].EventType)
	assert.Equal(t, 3, *events[0].Difficulty)
	assert.Equal(t, domain.CategoryMap{"TRAVEL": {"FRIEND_TRIP"}}, events[0].Categories)
}

func TestUpdateSettings_ValidatesBeforeWriting(t *testing.T) {
	f := setupService(t)

	_, err := f.service.UpdateSettings(context.Background(), "u1", intPtr(2), map[string][]string{"STUDY": {"NOPE"}})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.Code(err))

	_, err = f.service.UpdateSettings(context.Background(), "u1", nil, nil)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.Code(err))

	assert.False(t, f.mr.Exists("user:difficulty:u1"))
	assert.Empty(t, f.publisher.Events())
}

func TestResetDifficulty_UsesDefault(t *testing.T) {
	f := setupService(t)
	f.service.SetDefaultDifficulty(9)
	assert.Equal(t, 2, f.service.DefaultDifficulty())

	user, err := f.service.ResetDifficulty(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, *user.DifficultyLevel)
	assert.Equal(t, domain.EventTypeDifficulty, f.publisher.Events()[0].EventType)
}

func TestGetSetupStatus(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	status, err := f.service.GetSetupStatus(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, status.HasCompletedSetup)

	_, err = f.service.SetCategories(ctx, "u1", map[string][]string{"STUDY": {"CLASS_LISTENING"}})
	require.NoError(t, err)

	status, err = f.service.GetSetupStatus(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, status.HasCompletedSetup)
	assert.Equal(t, "Kim", status.User.Name)
}
