package users

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/internal/cache"
	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/models"
	"github.com/linkup/linkup/backend/go-services/internal/pagination"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
	carol = "33333333-3333-3333-3333-333333333333"
)

// fakeRepo keeps just enough state for the service flows and counts reads.
type fakeRepo struct {
	mu          sync.Mutex
	users       map[string]*models.User
	passwords   map[string]string
	pictureKeys map[string]*string
	connected   map[string][]string
	pending     map[string]bool // sender:receiver
	conns       []Connection
	calls       map[string]int
	failWith    error
	seq         int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:       map[string]*models.User{},
		passwords:   map[string]string{},
		pictureKeys: map[string]*string{},
		connected:   map[string][]string{},
		pending:     map[string]bool{},
		calls:       map[string]int{},
	}
}

func (f *fakeRepo) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failWith
}

func (f *fakeRepo) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRepo) addUser(id, name string) {
	f.users[id] = &models.User{ID: id, Name: name, Email: strings.ToLower(name) + "@example.com", Skills: []models.Skill{}}
}

func (f *fakeRepo) Create(ctx context.Context, name, email, hashed string) (string, error) {
	if err := f.hit("Create"); err != nil {
		return "", err
	}
	for _, u := range f.users {
		if u.Email == email {
			return "", ErrEmailTaken
		}
	}
	id := fmt.Sprintf("00000000-0000-0000-0000-%012d", len(f.users)+1)
	f.users[id] = &models.User{ID: id, Name: name, Email: email}
	f.passwords[id] = hashed
	return id, nil
}

func (f *fakeRepo) Credentials(ctx context.Context, email string) (*models.Credentials, error) {
	if err := f.hit("Credentials"); err != nil {
		return nil, err
	}
	for id, u := range f.users {
		if u.Email == email {
			return &models.Credentials{UserID: id, HashedPassword: f.passwords[id]}, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) PasswordHash(ctx context.Context, userID string) (string, error) {
	if err := f.hit("PasswordHash"); err != nil {
		return "", err
	}
	h, ok := f.passwords[userID]
	if !ok {
		return "", ErrUserNotFound
	}
	return h, nil
}

func (f *fakeRepo) SetPassword(ctx context.Context, userID, hashed string) error {
	if err := f.hit("SetPassword"); err != nil {
		return err
	}
	f.passwords[userID] = hashed
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, userID string) (*models.User, error) {
	if err := f.hit("Get"); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) Summaries(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	if err := f.hit("Summaries"); err != nil {
		return nil, err
	}
	out := []models.UserSummary{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, models.UserSummary{ID: u.ID, Name: u.Name})
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateBasicInfo(ctx context.Context, userID string, in BasicInfo) error {
	if err := f.hit("UpdateBasicInfo"); err != nil {
		return err
	}
	u, ok := f.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	return nil
}

func (f *fakeRepo) SetPictureKey(ctx context.Context, userID string, key *string) (*string, error) {
	if err := f.hit("SetPictureKey"); err != nil {
		return nil, err
	}
	if _, ok := f.users[userID]; !ok {
		return nil, ErrUserNotFound
	}
	old := f.pictureKeys[userID]
	f.pictureKeys[userID] = key
	return old, nil
}

func (f *fakeRepo) AddSkill(ctx context.Context, userID, name string, level *string) (*models.Skill, error) {
	if err := f.hit("AddSkill"); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	s := models.Skill{ID: fmt.Sprintf("skill-%d", len(u.Skills)+1), Name: name, Level: level}
	u.Skills = append(u.Skills, s)
	return &s, nil
}

func (f *fakeRepo) UpdateSkill(ctx context.Context, userID, skillID, name string, level *string) (*models.Skill, error) {
	if err := f.hit("UpdateSkill"); err != nil {
		return nil, err
	}
	return nil, ErrSkillNotFound
}

func (f *fakeRepo) DeleteSkill(ctx context.Context, userID, skillID string) error {
	if err := f.hit("DeleteSkill"); err != nil {
		return err
	}
	return ErrSkillNotFound
}

func (f *fakeRepo) entryID() string {
	f.seq++
	return fmt.Sprintf("eeeeeeee-0000-0000-0000-%012d", f.seq)
}

func (f *fakeRepo) AddWork(ctx context.Context, userID string, in WorkInput) (*models.WorkExperience, error) {
	if err := f.hit("AddWork"); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	w := models.WorkExperience{ID: f.entryID(), Organization: in.Organization, Role: in.Role, Location: in.Location,
		Description: in.Description, StartDate: in.StartDate, EndDate: in.EndDate}
	u.WorkExperience = append(u.WorkExperience, w)
	return &w, nil
}

func (f *fakeRepo) UpdateWork(ctx context.Context, userID, id string, in WorkInput) (*models.WorkExperience, error) {
	if err := f.hit("UpdateWork"); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	for i := range u.WorkExperience {
		if u.WorkExperience[i].ID == id {
			u.WorkExperience[i] = models.WorkExperience{ID: id, Organization: in.Organization, Role: in.Role,
				Location: in.Location, Description: in.Description, StartDate: in.StartDate, EndDate: in.EndDate}
			w := u.WorkExperience[i]
			return &w, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (f *fakeRepo) DeleteWork(ctx context.Context, userID, id string) error {
	if err := f.hit("DeleteWork"); err != nil {
		return err
	}
	u, ok := f.users[userID]
	if !ok {
		return ErrEntryNotFound
	}
	for i := range u.WorkExperience {
		if u.WorkExperience[i].ID == id {
			u.WorkExperience = append(u.WorkExperience[:i], u.WorkExperience[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

func (f *fakeRepo) AddEducation(ctx context.Context, userID string, in EducationInput) (*models.Education, error) {
	if err := f.hit("AddEducation"); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	e := models.Education{ID: f.entryID(), Institute: in.Institute, InstituteType: in.InstituteType,
		Description: in.Description, StartDate: in.StartDate, EndDate: in.EndDate}
	u.Education = append(u.Education, e)
	return &e, nil
}

func (f *fakeRepo) UpdateEducation(ctx context.Context, userID, id string, in EducationInput) (*models.Education, error) {
	if err := f.hit("UpdateEducation"); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	for i := range u.Education {
		if u.Education[i].ID == id {
			u.Education[i] = models.Education{ID: id, Institute: in.Institute, InstituteType: in.InstituteType,
				Description: in.Description, StartDate: in.StartDate, EndDate: in.EndDate}
			e := u.Education[i]
			return &e, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (f *fakeRepo) DeleteEducation(ctx context.Context, userID, id string) error {
	if err := f.hit("DeleteEducation"); err != nil {
		return err
	}
	u, ok := f.users[userID]
	if !ok {
		return ErrEntryNotFound
	}
	for i := range u.Education {
		if u.Education[i].ID == id {
			u.Education = append(u.Education[:i], u.Education[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

func (f *fakeRepo) AddAward(ctx context.Context, userID string, in AwardInput) (*models.Award, error) {
	if err := f.hit("AddAward"); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	a := models.Award{ID: f.entryID(), Title: in.Title, Description: in.Description}
	u.Awards = append(u.Awards, a)
	return &a, nil
}

func (f *fakeRepo) UpdateAward(ctx context.Context, userID, id string, in AwardInput) (*models.Award, error) {
	if err := f.hit("UpdateAward"); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	for i := range u.Awards {
		if u.Awards[i].ID == id {
			u.Awards[i] = models.Award{ID: id, Title: in.Title, Description: in.Description}
			a := u.Awards[i]
			return &a, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (f *fakeRepo) DeleteAward(ctx context.Context, userID, id string) error {
	if err := f.hit("DeleteAward"); err != nil {
		return err
	}
	u, ok := f.users[userID]
	if !ok {
		return ErrEntryNotFound
	}
	for i := range u.Awards {
		if u.Awards[i].ID == id {
			u.Awards = append(u.Awards[:i], u.Awards[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

func (f *fakeRepo) SendRequest(ctx context.Context, senderID, receiverID string) error {
	if err := f.hit("SendRequest"); err != nil {
		return err
	}
	if _, ok := f.users[receiverID]; !ok {
		return ErrUserNotFound
	}
	if f.pending[senderID+":"+receiverID] || f.pending[receiverID+":"+senderID] {
		return ErrRequestExists
	}
	f.pending[senderID+":"+receiverID] = true
	return nil
}

func (f *fakeRepo) AcceptRequest(ctx context.Context, receiverID, senderID string) error {
	if err := f.hit("AcceptRequest"); err != nil {
		return err
	}
	if !f.pending[senderID+":"+receiverID] {
		return ErrNoPendingRequest
	}
	delete(f.pending, senderID+":"+receiverID)
	f.connected[receiverID] = append(f.connected[receiverID], senderID)
	f.connected[senderID] = append(f.connected[senderID], receiverID)
	return nil
}

func (f *fakeRepo) DeleteRequest(ctx context.Context, senderID, receiverID string) error {
	if err := f.hit("DeleteRequest"); err != nil {
		return err
	}
	if !f.pending[senderID+":"+receiverID] {
		return ErrNoPendingRequest
	}
	delete(f.pending, senderID+":"+receiverID)
	return nil
}

func (f *fakeRepo) DeleteConnection(ctx context.Context, a, b string) error {
	if err := f.hit("DeleteConnection"); err != nil {
		return err
	}
	return ErrNotConnected
}

func (f *fakeRepo) Connections(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Connection, error) {
	if err := f.hit("Connections"); err != nil {
		return nil, err
	}
	if len(f.conns) > limit {
		return f.conns[:limit], nil
	}
	return f.conns, nil
}

func (f *fakeRepo) Received(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Connection, error) {
	return nil, f.hit("Received")
}

func (f *fakeRepo) Sent(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Connection, error) {
	return nil, f.hit("Sent")
}

func (f *fakeRepo) CountConnections(ctx context.Context, userID string) (int64, error) {
	if err := f.hit("CountConnections"); err != nil {
		return 0, err
	}
	return int64(len(f.connected[userID])), nil
}

func (f *fakeRepo) CountReceived(ctx context.Context, userID string) (int64, error) {
	return 0, f.hit("CountReceived")
}

func (f *fakeRepo) CountSent(ctx context.Context, userID string) (int64, error) {
	return 0, f.hit("CountSent")
}

func (f *fakeRepo) ConnectionIDs(ctx context.Context, userID string) ([]string, error) {
	if err := f.hit("ConnectionIDs"); err != nil {
		return nil, err
	}
	return append([]string{}, f.connected[userID]...), nil
}

func (f *fakeRepo) Suggestions(ctx context.Context, userID string, limit int) ([]models.UserSummary, error) {
	return []models.UserSummary{}, f.hit("Suggestions")
}

func (f *fakeRepo) Relation(ctx context.Context, viewerID, otherID string) (string, error) {
	if err := f.hit("Relation"); err != nil {
		return "", err
	}
	switch {
	case f.pending[viewerID+":"+otherID]:
		return RelationSent, nil
	case f.pending[otherID+":"+viewerID]:
		return RelationReceived, nil
	}
	return RelationNone, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type fakePictures struct {
	objects map[string][]byte
	removed []string
}

func (f *fakePictures) UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = b
	return nil
}

func (f *fakePictures) DownloadFile(ctx context.Context, key string) (io.ReadCloser, string, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, "", errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(b)), "image/png", nil
}

func (f *fakePictures) RemoveFile(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	delete(f.objects, key)
	return nil
}

type fakeRevoker struct {
	revoked []string
}

func (f *fakeRevoker) RevokeAll(ctx context.Context, userID string) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

type env struct {
	m        *mr.Miniredis
	repo     *fakeRepo
	pub      *recordingPublisher
	pictures *fakePictures
	revoker  *fakeRevoker
	svc      *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := &env{
		m:        m,
		repo:     newFakeRepo(),
		pub:      &recordingPublisher{},
		pictures: &fakePictures{objects: map[string][]byte{}},
		revoker:  &fakeRevoker{},
	}
	e.repo.addUser(alice, "Alice")
	e.repo.addUser(bob, "Bob")
	e.repo.addUser(carol, "Carol")
	urls := PictureURLs{Base: "/api/v1/pictures", Default: "/static/default.png"}
	e.svc = NewService(e.repo, cache.New(client), urls, e.pictures, e.revoker, e.pub)
	e.svc.cost = bcrypt.MinCost
	return e
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return apperr.As(err).Status
}

func TestProfileReadThroughAndInvalidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Profile(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "Alice", u.Name)
	_, err = e.svc.Profile(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, 1, e.repo.count("Get"))
	require.True(t, e.m.Exists(cache.UserProfile(alice).Name))

	_, err = e.svc.AddSkill(ctx, alice, "Go", nil)
	require.NoError(t, err)
	require.False(t, e.m.Exists(cache.UserProfile(alice).Name))

	u, err = e.svc.Profile(ctx, alice)
	require.NoError(t, err)
	require.Len(t, u.Skills, 1)
	require.Equal(t, 2, e.repo.count("Get"))
}

func TestProfileMissingIsNotCached(t *testing.T) {
	e := newEnv(t)
	missing := "44444444-4444-4444-4444-444444444444"

	_, err := e.svc.Profile(context.Background(), missing)
	require.Equal(t, http.StatusNotFound, statusOf(t, err))
	require.False(t, e.m.Exists(cache.UserProfile(missing).Name))
}

func TestProfileStoreFailureIsInternal(t *testing.T) {
	e := newEnv(t)
	e.repo.failWith = errors.New("db down")

	_, err := e.svc.Profile(context.Background(), alice)
	require.Equal(t, http.StatusInternalServerError, statusOf(t, err))
}

func str(s string) *string { return &s }

// cacheProfile reads the profile so it is cached, then returns a check that
// the next mutation dropped it and the read after that hits the store.
func cacheProfile(t *testing.T, e *env, userID string) func() *models.User {
	t.Helper()
	_, err := e.svc.Profile(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, e.m.Exists(cache.UserProfile(userID).Name))
	gets := e.repo.count("Get")
	return func() *models.User {
		t.Helper()
		require.False(t, e.m.Exists(cache.UserProfile(userID).Name))
		u, err := e.svc.Profile(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, gets+1, e.repo.count("Get"))
		return u
	}
}

func TestWorkExperience(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := WorkInput{Organization: "Acme", Role: "Engineer", Location: "Berlin", StartDate: "2020-01-01", EndDate: str("2022-06-30")}

	reload := cacheProfile(t, e, alice)
	w, err := e.svc.AddWork(ctx, alice, in)
	require.NoError(t, err)
	u := reload()
	require.Len(t, u.WorkExperience, 1)
	require.Equal(t, "Acme", u.WorkExperience[0].Organization)

	in.Role = "Lead"
	reload = cacheProfile(t, e, alice)
	_, err = e.svc.UpdateWork(ctx, alice, w.ID, in)
	require.NoError(t, err)
	require.Equal(t, "Lead", reload().WorkExperience[0].Role)

	// someone else's entry is a 404 and leaves the cache alone
	_, err = e.svc.Profile(ctx, bob)
	require.NoError(t, err)
	_, err = e.svc.UpdateWork(ctx, bob, w.ID, in)
	require.Equal(t, http.StatusNotFound, statusOf(t, err))
	require.True(t, e.m.Exists(cache.UserProfile(bob).Name))

	reload = cacheProfile(t, e, alice)
	require.NoError(t, e.svc.DeleteWork(ctx, alice, w.ID))
	require.Empty(t, reload().WorkExperience)
	require.Equal(t, http.StatusNotFound, statusOf(t, e.svc.DeleteWork(ctx, alice, w.ID)))
}

func TestWorkExperienceDateRange(t *testing.T) {
	e := newEnv(t)
	in := WorkInput{Organization: "Acme", Role: "Engineer", Location: "Berlin", StartDate: "2020-01-01", EndDate: str("2020-01-01")}

	_, err := e.svc.AddWork(context.Background(), alice, in)
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))
	require.Equal(t, msgWorkRange, apperr.As(err).Message)
	require.Zero(t, e.repo.count("AddWork"))

	in.EndDate = nil
	_, err = e.svc.AddWork(context.Background(), alice, in)
	require.NoError(t, err)
}

func TestEducation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := EducationInput{Institute: "TU", InstituteType: "university", StartDate: "2015-10-01", EndDate: str("2015-10-01")}

	reload := cacheProfile(t, e, alice)
	ed, err := e.svc.AddEducation(ctx, alice, in)
	require.NoError(t, err)
	require.Len(t, reload().Education, 1)

	in.EndDate = str("2015-09-30")
	_, err = e.svc.UpdateEducation(ctx, alice, ed.ID, in)
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))
	require.Equal(t, msgEducationRange, apperr.As(err).Message)

	in.EndDate = str("2019-07-31")
	reload = cacheProfile(t, e, alice)
	_, err = e.svc.UpdateEducation(ctx, alice, ed.ID, in)
	require.NoError(t, err)
	require.Equal(t, "2019-07-31", *reload().Education[0].EndDate)

	reload = cacheProfile(t, e, alice)
	require.NoError(t, e.svc.DeleteEducation(ctx, alice, ed.ID))
	require.Empty(t, reload().Education)
}

func TestAwards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.AddAward(ctx, "44444444-4444-4444-4444-444444444444", AwardInput{Title: "Ghost"})
	require.Equal(t, http.StatusNotFound, statusOf(t, err))

	reload := cacheProfile(t, e, alice)
	a, err := e.svc.AddAward(ctx, alice, AwardInput{Title: "Best paper"})
	require.NoError(t, err)
	require.Equal(t, "Best paper", reload().Awards[0].Title)

	reload = cacheProfile(t, e, alice)
	_, err = e.svc.UpdateAward(ctx, alice, a.ID, AwardInput{Title: "Best paper", Description: str("ICSE")})
	require.NoError(t, err)
	require.Equal(t, "ICSE", *reload().Awards[0].Description)

	reload = cacheProfile(t, e, alice)
	require.NoError(t, e.svc.DeleteAward(ctx, alice, a.ID))
	require.Empty(t, reload().Awards)

	e.repo.failWith = errors.New("db down")
	_, err = e.svc.AddAward(ctx, alice, AwardInput{Title: "x"})
	require.Equal(t, http.StatusInternalServerError, statusOf(t, err))
}

func TestUpdateBasicInfoInvalidatesPostViews(t *testing.T) {
	e := newEnv(t)
	e.repo.connected[alice] = []string{bob}
	keys := []cache.Key{
		cache.UserProfile(alice),
		cache.UserBasic(alice),
		cache.OwnPosts(alice),
		cache.FeedPosts(alice),
		cache.FeedPosts(bob),
	}
	for _, k := range keys {
		require.NoError(t, e.m.Set(k.Name, "stale"))
	}
	require.NoError(t, e.m.Set(cache.FeedPosts(carol).Name, "[]"))

	require.NoError(t, e.svc.UpdateBasicInfo(context.Background(), alice, BasicInfo{Name: str("Alicia")}))
	for _, k := range keys {
		assert.False(t, e.m.Exists(k.Name), k.Name)
	}
	require.True(t, e.m.Exists(cache.FeedPosts(carol).Name))

	b, err := e.svc.Me(context.Background(), alice)
	require.NoError(t, err)
	require.Equal(t, "Alicia", b.Name)
}

func TestMeUsesBasicCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b, err := e.svc.Me(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", b.Email)
	_, err = e.svc.Me(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, 1, e.repo.count("Get"))
}

func TestSendRequest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.Equal(t, http.StatusBadRequest, statusOf(t, e.svc.SendRequest(ctx, alice, alice)))

	for _, k := range []cache.Key{
		cache.UserReceivedConnection(bob), cache.UserSentConnectionCount(alice),
		cache.UserRelation(alice, bob), cache.UserRelation(bob, alice), cache.UserSuggestion(bob),
	} {
		require.NoError(t, e.m.Set(k.Name, "stale"))
	}
	require.NoError(t, e.svc.SendRequest(ctx, alice, bob))
	for _, k := range []string{
		cache.UserReceivedConnection(bob).Name, cache.UserSentConnectionCount(alice).Name,
		cache.UserRelation(alice, bob).Name, cache.UserRelation(bob, alice).Name, cache.UserSuggestion(bob).Name,
	} {
		assert.False(t, e.m.Exists(k), k)
	}

	require.Len(t, e.pub.events, 1)
	ev := e.pub.events[0]
	require.Equal(t, events.SentRequest, ev.Type)
	require.Equal(t, bob, ev.UserID)
	require.Equal(t, alice, ev.ActorID)

	err := e.svc.SendRequest(ctx, bob, alice)
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))
	require.Equal(t, "Request or connection already exist", apperr.As(err).Message)
}

func TestAcceptRequest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	err := e.svc.AcceptRequest(ctx, bob, alice)
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))
	require.Equal(t, "No pending request", apperr.As(err).Message)

	require.NoError(t, e.svc.SendRequest(ctx, alice, bob))
	require.NoError(t, e.m.Set(cache.FeedPosts(alice).Name, "[]"))
	require.NoError(t, e.m.Set(cache.UserConnectionCount(bob).Name, "0"))

	require.NoError(t, e.svc.AcceptRequest(ctx, bob, alice))
	require.False(t, e.m.Exists(cache.FeedPosts(alice).Name))
	require.False(t, e.m.Exists(cache.UserConnectionCount(bob).Name))

	n, err := e.svc.ConnectionCount(ctx, bob)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	last := e.pub.events[len(e.pub.events)-1]
	require.Equal(t, events.AcceptRequest, last.Type)
	require.Equal(t, alice, last.UserID)
}

func TestRejectCancelAndRemoveMissing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.Equal(t, http.StatusNotFound, statusOf(t, e.svc.RejectRequest(ctx, bob, alice)))
	require.Equal(t, http.StatusNotFound, statusOf(t, e.svc.CancelRequest(ctx, alice, bob)))
	require.Equal(t, http.StatusNotFound, statusOf(t, e.svc.RemoveConnection(ctx, alice, bob)))
	require.Equal(t, http.StatusBadRequest, statusOf(t, e.svc.RemoveConnection(ctx, alice, alice)))
}

func TestCancelRequestEmitsEvent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.svc.SendRequest(ctx, alice, carol))
	require.NoError(t, e.svc.CancelRequest(ctx, alice, carol))

	last := e.pub.events[len(e.pub.events)-1]
	require.Equal(t, events.CancelRequest, last.Type)
	require.Equal(t, carol, last.UserID)
	require.Equal(t, alice, *last.EntityID)
}

func TestRelation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rel, err := e.svc.Relation(ctx, alice, alice)
	require.NoError(t, err)
	require.Equal(t, RelationSelf, rel)
	require.Zero(t, e.repo.count("Relation"))

	rel, err = e.svc.Relation(ctx, alice, bob)
	require.NoError(t, err)
	require.Equal(t, RelationNone, rel)
	_, _ = e.svc.Relation(ctx, alice, bob)
	require.Equal(t, 1, e.repo.count("Relation"))

	require.NoError(t, e.svc.SendRequest(ctx, alice, bob))
	rel, err = e.svc.Relation(ctx, alice, bob)
	require.NoError(t, err)
	require.Equal(t, RelationSent, rel)
	rel, err = e.svc.Relation(ctx, bob, alice)
	require.NoError(t, err)
	require.Equal(t, RelationReceived, rel)
}

func TestConnectionsPagination(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < pagination.PageSize; i++ {
		e.repo.conns = append(e.repo.conns, Connection{
			User:      models.UserSummary{ID: fmt.Sprintf("00000000-0000-0000-0000-%012d", i)},
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}

	p, err := e.svc.Connections(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, p.Items, pagination.PageSize)
	require.NotNil(t, p.NextCursor)
	require.Equal(t, e.repo.conns[pagination.PageSize-1].User.ID, p.NextCursor.ID)

	_, err = e.svc.Connections(ctx, alice, "")
	require.NoError(t, err)
	require.Equal(t, 1, e.repo.count("Connections"))

	next := fmt.Sprintf(`{"createdAt":%q,"id":%q}`, p.NextCursor.CreatedAt.Format(time.RFC3339Nano), p.NextCursor.ID)
	_, err = e.svc.Connections(ctx, alice, next)
	require.NoError(t, err)
	_, err = e.svc.Connections(ctx, alice, next)
	require.NoError(t, err)
	require.Equal(t, 3, e.repo.count("Connections"))

	_, err = e.svc.Connections(ctx, alice, `{"createdAt":"2024-01-01T00:00:00Z","id":"nope"}`)
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestShortPageHasNoCursor(t *testing.T) {
	e := newEnv(t)
	p, err := e.svc.Received(context.Background(), alice, "")
	require.NoError(t, err)
	require.Empty(t, p.Items)
	require.Nil(t, p.NextCursor)
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("Old-pass1"), bcrypt.MinCost)
	require.NoError(t, err)
	e.repo.passwords[alice] = string(hash)

	require.Equal(t, http.StatusUnauthorized, statusOf(t, e.svc.ChangePassword(ctx, alice, "Wrong-pass1", "New-pass1")))
	require.Empty(t, e.revoker.revoked)

	require.NoError(t, e.svc.ChangePassword(ctx, alice, "Old-pass1", "New-pass1"))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(e.repo.passwords[alice]), []byte("New-pass1")))
	require.Equal(t, []string{alice}, e.revoker.revoked)
}

func TestUpdatePicture(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.repo.connected[alice] = []string{bob}
	old := picturePrefix + "old.png"
	e.repo.pictureKeys[alice] = &old
	for _, k := range []cache.Key{cache.UserBasic(alice), cache.OwnPosts(alice), cache.FeedPosts(alice), cache.FeedPosts(bob)} {
		require.NoError(t, e.m.Set(k.Name, "stale"))
	}

	_, err := e.svc.UpdatePicture(ctx, alice, strings.NewReader("GIF89a"), 6, "image/gif")
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))
	_, err = e.svc.UpdatePicture(ctx, alice, strings.NewReader("x"), MaxPictureSize+1, "image/png")
	require.Equal(t, http.StatusBadRequest, statusOf(t, err))

	url, err := e.svc.UpdatePicture(ctx, alice, strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/api/v1/pictures/"))
	require.True(t, strings.HasSuffix(url, ".png"))
	require.Equal(t, []string{old}, e.pictures.removed)

	for _, k := range []cache.Key{cache.UserBasic(alice), cache.OwnPosts(alice), cache.FeedPosts(alice), cache.FeedPosts(bob)} {
		assert.False(t, e.m.Exists(k.Name), k.Name)
	}

	name := strings.TrimPrefix(url, "/api/v1/pictures/")
	rc, _, err := e.svc.Picture(ctx, name)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(b))

	_, _, err = e.svc.Picture(ctx, "../secret.png")
	require.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestInternalLookups(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Credentials(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)

	id, err := e.svc.Register(ctx, "Dave", "dave@example.com", "hash")
	require.NoError(t, err)
	creds, err := e.svc.Credentials(ctx, "dave@example.com")
	require.NoError(t, err)
	require.Equal(t, id, creds.UserID)

	_, err = e.svc.Register(ctx, "Dave", "dave@example.com", "hash")
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = e.svc.Summary(ctx, "55555555-5555-5555-5555-555555555555")
	require.ErrorIs(t, err, ErrUserNotFound)
}
