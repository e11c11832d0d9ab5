package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"templegames/internal/api/api"
	"templegames/internal/auth"
	"templegames/internal/dto"
	"templegames/internal/model"
	"templegames/internal/repo"
	"templegames/internal/service"
)

const testSecret = "service-test-secret"

// stubRepo satisfies repo.Repository in memory, with scripted errors for
// the team transaction paths.
type stubRepo struct {
	users  map[int64]*model.User
	teams  map[int64]*model.Team
	events []model.TeamEvent

	createTeamErr error
	updateTeamErr error
	nextTeamID    int64

	actions []string
}

func newStubRepo() *stubRepo {
	pass, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	admin := &model.User{
		ID: 1, TempleID: 10, FirstName: "Admin", LastName: "One",
		Email: "admin@example.com", AadharNumber: "111122223333",
		Gender: "MALE", Role: model.RoleTempleAdmin, PassHash: string(pass),
	}
	member := &model.User{
		ID: 2, TempleID: 10, FirstName: "Bala", LastName: "Raman",
		Email: "bala@example.com", AadharNumber: "111122224444",
		Gender: "MALE", Role: model.RoleUser, PassHash: string(pass),
	}
	stranger := &model.User{
		ID: 3, TempleID: 77, FirstName: "Easwar", LastName: "Rao",
		Email: "easwar@example.com", AadharNumber: "121212121212",
		Gender: "MALE", Role: model.RoleUser, PassHash: string(pass),
	}
	return &stubRepo{
		users: map[int64]*model.User{1: admin, 2: member, 3: stranger},
		teams: map[int64]*model.Team{},
		events: []model.TeamEvent{
			{ID: 1, EventTypeID: 1, EventTypeName: "Volleyball", Gender: "MALE", TeamSize: 9},
			{ID: 2, EventTypeID: 2, EventTypeName: "Couple Relay", Gender: "ALL", TeamSize: 2},
		},
		nextTeamID: 500,
	}
}

func (r *stubRepo) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	id := int64(len(r.users) + 1)
	u.ID = id
	r.users[id] = u
	return id, nil
}

func (r *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (r *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repo.ErrUserNotFound
}

func (r *stubRepo) GetUserByAadhar(ctx context.Context, aadhar string) (*model.User, error) {
	for _, u := range r.users {
		if u.AadharNumber == aadhar {
			return u, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (r *stubRepo) GetUsersByTemple(ctx context.Context, templeID int64) ([]model.User, error) {
	var out []model.User
	for _, u := range r.users {
		if u.TempleID == templeID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *stubRepo) GetTempleAdmin(ctx context.Context, templeID int64) (*model.User, error) {
	for _, u := range r.users {
		if u.TempleID == templeID && u.Role == model.RoleTempleAdmin {
			return u, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (r *stubRepo) GetTeamEvents(ctx context.Context) ([]model.TeamEvent, error) {
	return r.events, nil
}

func (r *stubRepo) GetTeamEventByID(ctx context.Context, id int64) (*model.TeamEvent, error) {
	for i := range r.events {
		if r.events[i].ID == id {
			return &r.events[i], nil
		}
	}
	return nil, repo.ErrEventNotFound
}

func (r *stubRepo) GetTeamByID(ctx context.Context, id int64) (*model.Team, error) {
	if t, ok := r.teams[id]; ok {
		return t, nil
	}
	return nil, repo.ErrTeamNotFound
}

func (r *stubRepo) GetTeamsByTemple(ctx context.Context, templeID int64) ([]model.Team, error) {
	var out []model.Team
	for _, t := range r.teams {
		if t.TempleID == templeID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *stubRepo) CreateTeamTx(ctx context.Context, templeID, eventID int64, memberIDs []int64) (int64, error) {
	if r.createTeamErr != nil {
		return 0, r.createTeamErr
	}
	r.nextTeamID++
	var members []model.User
	for _, id := range memberIDs {
		members = append(members, *r.users[id])
	}
	r.teams[r.nextTeamID] = &model.Team{
		ID: r.nextTeamID, TempleID: templeID, EventID: eventID,
		Members: members, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	return r.nextTeamID, nil
}

func (r *stubRepo) UpdateTeamMembersTx(ctx context.Context, teamID, templeID int64, memberIDs []int64) error {
	if r.updateTeamErr != nil {
		return r.updateTeamErr
	}
	t, ok := r.teams[teamID]
	if !ok || t.TempleID != templeID {
		return repo.ErrTeamNotFound
	}
	t.Members = nil
	for _, id := range memberIDs {
		t.Members = append(t.Members, *r.users[id])
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (r *stubRepo) GetLeaderboard(ctx context.Context) ([]model.Temple, error) {
	return []model.Temple{{ID: 10, Name: "Kapaleeshwarar", Points: 42}}, nil
}

func (r *stubRepo) LogAction(ctx context.Context, actorID int64, action, details string) {
	r.actions = append(r.actions, action)
}

func (r *stubRepo) MigrateUp(dir string) error   { return nil }
func (r *stubRepo) MigrateDown(dir string) error { return nil }

func testServer(t *testing.T, r *stubRepo) http.Handler {
	t.Helper()
	log := zerolog.Nop()
	svc := service.NewService(r, &log, nil, testSecret)
	return api.NewRouters(&api.Routers{Service: svc, JWTSecret: testSecret})
}

func adminToken(t *testing.T, r *stubRepo) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, r.users[1], time.Hour)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var reader bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = *bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, &reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestLoginIssuesUsableToken(t *testing.T) {
	r := newStubRepo()
	h := testServer(t, r)

	rec, env := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{
		Email: "admin@example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login dto.LoginResponse
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &login))
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "temple_admin", login.User.Role)

	rec, _ = doJSON(t, h, http.MethodGet, "/v1/profile", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	r := newStubRepo()
	h := testServer(t, r)

	rec, env := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{
		Email: "admin@example.com", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.Unauthorized, env.Error.Code)
}

func TestSignupRejectsBadAadhar(t *testing.T) {
	r := newStubRepo()
	h := testServer(t, r)

	req := dto.SignupRequest{
		TempleID: 10, FirstName: "New", LastName: "User",
		Email: "new@example.com", AadharNumber: "123", Gender: "MALE",
		Password: "secret1",
	}
	rec, env := doJSON(t, h, http.MethodPost, "/v1/auth/signup", "", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.FieldIncorrect, env.Error.Code)
	assert.Contains(t, env.Error.Desc, "12 digits")
}

func TestRegisterTeamRequiresAdminRole(t *testing.T) {
	r := newStubRepo()
	h := testServer(t, r)

	token, err := auth.IssueToken(testSecret, r.users[2], time.Hour)
	require.NoError(t, err)

	rec, _ := doJSON(t, h, http.MethodPost, "/v1/register-team", token, dto.RegisterTeamRequest{
		TempleID: 10, EventID: 1, MemberUserIDs: []int64{2},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterTeamRejectsForeignTemple(t *testing.T) {
	r := newStubRepo()
	h := testServer(t, r)

	rec, env := doJSON(t, h, http.MethodPost, "/v1/register-team", adminToken(t, r), dto.RegisterTeamRequest{
		TempleID: 77, EventID: 1, MemberUserIDs: []int64{2},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.Forbidden, env.Error.Code)
}

func TestRegisterTeamCreatesAndReturnsRoster(t *testing.T) {
	r := newStubRepo()
	h := testServer(t, r)

	rec, env := doJSON(t, h, http.MethodPost, "/v1/register-team", adminToken(t, r), dto.RegisterTeamRequest{
		TempleID: 10, EventID: 1, MemberUserIDs: []int64{1, 2},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var team dto.TeamResponse
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &team))
	assert.Equal(t, int64(1), team.EventID)
	require.Len(t, team.Members, 2)
	assert.Contains(t, r.actions, "register_team")
}

func TestRegisterTeamMapsRepoErrors(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
		wantHTTP int
	}{
		{"duplicate registration", repo.ErrDuplicateTeam, dto.RegistrationDuplicate, http.StatusBadRequest},
		{"unknown event", repo.ErrEventNotFound, dto.EventNotFound, http.StatusNotFound},
		{"wrong temple member", repo.ErrMemberWrongTemple, dto.MemberWrongTemple, http.StatusBadRequest},
		{"duplicate member", repo.ErrDuplicateMember, dto.MemberDuplicate, http.StatusBadRequest},
		{"roster too large", repo.ErrTeamTooLarge, dto.TeamTooLarge, http.StatusBadRequest},
		{"unknown member", repo.ErrUserNotFound, dto.UserNotFound, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newStubRepo()
			r.createTeamErr = tt.repoErr
			h := testServer(t, r)

			rec, env := doJSON(t, h, http.MethodPost, "/v1/register-team", adminToken(t, r), dto.RegisterTeamRequest{
				TempleID: 10, EventID: 1, MemberUserIDs: []int64{2},
			})
			assert.Equal(t, tt.wantHTTP, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestUpdateTeamReplacesRoster(t *testing.T) {
	r := newStubRepo()
	h := testServer(t, r)
	token := adminToken(t, r)

	_, env := doJSON(t, h, http.MethodPost, "/v1/register-team", token, dto.RegisterTeamRequest{
		TempleID: 10, EventID: 1, MemberUserIDs: []int64{1, 2},
	})
	var created dto.TeamResponse
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &created))

	rec, env := doJSON(t, h, http.MethodPut, "/v1/update-team/501", token, dto.UpdateTeamRequest{
		MemberUserIDs: []int64{2},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated dto.TeamResponse
	raw, err = json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &updated))
	require.Len(t, updated.Members, 1)
	assert.Equal(t, int64(2), updated.Members[0].ID)
}

func TestSearchByAadharEnforcesTempleScope(t *testing.T) {
	r := newStubRepo()
	h := testServer(t, r)
	token := adminToken(t, r)

	rec, env := doJSON(t, h, http.MethodGet, "/v1/search-by-aadhar?aadharNumber=111122224444", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, env.Error)

	rec, env = doJSON(t, h, http.MethodGet, "/v1/search-by-aadhar?aadharNumber=121212121212", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Member belongs to a different temple", env.Error.Desc)

	rec, env = doJSON(t, h, http.MethodGet, "/v1/search-by-aadhar?aadharNumber=000000000000", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.UserNotFound, env.Error.Code)
}

func TestTeamEventsListsCatalog(t *testing.T) {
	r := newStubRepo()
	h := testServer(t, r)

	rec, env := doJSON(t, h, http.MethodGet, "/v1/team-events", adminToken(t, r), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []dto.TeamEventResponse
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &events))
	require.Len(t, events, 2)
	assert.Equal(t, "Volleyball", events[0].EventType.Name)
	assert.Equal(t, "ALL", events[1].Gender)
}
