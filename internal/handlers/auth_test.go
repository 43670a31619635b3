package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cropscan/apiserver/config"
	"github.com/cropscan/apiserver/internal/logging"
	"github.com/cropscan/apiserver/internal/services"
	"github.com/cropscan/apiserver/internal/store"
	"github.com/cropscan/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthRouter(repo services.UserRepository, cfg config.AuthConfig) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, services.NewUserService(repo), cfg, logging.Discard())
	})
	return r
}

func postRegister(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegister_Success(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	h := newAuthRouter(repo, config.AuthConfig{})

	rec := postRegister(t, h, `{"name":"Asha","email":"asha@farm.test","password":"pw","location":"Nakuru"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User registered successfully", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	user, err := repo.GetByEmail(context.Background(), "asha@farm.test")
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "pw", user.Password)
	assert.Equal(t, "Nakuru", user.Location)
}

func TestRegister_KeepsExtraProfileFields(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	h := newAuthRouter(repo, config.AuthConfig{})

	rec := postRegister(t, h, `{"email":"kip@farm.test","password":"pw","farmSize":"2 acres","crops":["maize"],"Role":"ADMIN"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := repo.GetByEmail(context.Background(), "kip@farm.test")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"farmSize": "2 acres", "crops": []any{"maize"}}, user.Profile)
	assert.Equal(t, types.RoleFarmer, user.Role)
}

func TestRegister_NoExtraFieldsLeavesProfileEmpty(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	h := newAuthRouter(repo, config.AuthConfig{})

	rec := postRegister(t, h, `{"name":"Asha","email":"plain@farm.test","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := repo.GetByEmail(context.Background(), "plain@farm.test")
	require.NoError(t, err)
	assert.Nil(t, user.Profile)
}

func TestRegister_RoleAlwaysFarmer(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	h := newAuthRouter(repo, config.AuthConfig{})

	rec := postRegister(t, h, `{"email":"boss@farm.test","password":"pw","role":"ADMIN"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := repo.GetByEmail(context.Background(), "boss@farm.test")
	require.NoError(t, err)
	assert.Equal(t, types.RoleFarmer, user.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	h := newAuthRouter(repo, config.AuthConfig{})

	first := postRegister(t, h, `{"email":"dup@farm.test","password":"one"}`)
	require.Equal(t, http.StatusOK, first.Code)

	second := postRegister(t, h, `{"email":"dup@farm.test","password":"two"}`)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "Email already exists", second.Body.String())
	assert.Equal(t, 1, repo.CountByEmail("dup@farm.test"))

	user, err := repo.GetByEmail(context.Background(), "dup@farm.test")
	require.NoError(t, err)
	assert.Equal(t, "one", user.Password)
}

func TestRegister_DuplicateEmailStrictStatus(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	h := newAuthRouter(repo, config.AuthConfig{StrictRegisterStatus: true})

	require.Equal(t, http.StatusOK, postRegister(t, h, `{"email":"dup@farm.test"}`).Code)

	rec := postRegister(t, h, `{"email":"dup@farm.test"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already exists", rec.Body.String())
}

func TestRegister_MalformedBody(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	h := newAuthRouter(repo, config.AuthConfig{})

	rec := postRegister(t, h, `{"email":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", rec.Body.String())
}

func TestRegister_PasswordHashing(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	h := newAuthRouter(repo, config.AuthConfig{PasswordHashing: true})

	require.Equal(t, http.StatusOK, postRegister(t, h, `{"email":"hash@farm.test","password":"secret"}`).Code)

	user, err := repo.GetByEmail(context.Background(), "hash@farm.test")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret")))
}

type racingUserRepo struct{}

func (racingUserRepo) GetByEmail(context.Context, string) (types.User, error) {
	return types.User{}, store.ErrNotFound
}

func (racingUserRepo) Create(context.Context, types.User) (types.User, error) {
	return types.User{}, store.ErrDuplicate
}

func TestRegister_InsertRaceReportsDuplicate(t *testing.T) {
	h := newAuthRouter(racingUserRepo{}, config.AuthConfig{})

	rec := postRegister(t, h, `{"email":"race@farm.test"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Email already exists", rec.Body.String())
}

type brokenUserRepo struct{}

func (brokenUserRepo) GetByEmail(context.Context, string) (types.User, error) {
	return types.User{}, errors.New("connection reset")
}

func (brokenUserRepo) Create(context.Context, types.User) (types.User, error) {
	return types.User{}, errors.New("connection reset")
}

func TestRegister_StoreFailure(t *testing.T) {
	h := newAuthRouter(brokenUserRepo{}, config.AuthConfig{})

	rec := postRegister(t, h, `{"email":"x@farm.test"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Registration failed", rec.Body.String())
}
