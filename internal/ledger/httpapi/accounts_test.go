package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

const testJWTSecret = "test-secret"

type fakeAccountRepo struct {
	accounts map[string]*domain.Account
}

func newFakeAccountRepo(accounts ...domain.Account) *fakeAccountRepo {
	m := make(map[string]*domain.Account, len(accounts))
	for i := range accounts {
		a := accounts[i]
		m[a.TenantID+"/"+a.Code] = &a
	}
	return &fakeAccountRepo{accounts: m}
}

func (f *fakeAccountRepo) Get(ctx context.Context, tenantID, code string) (*domain.Account, error) {
	a, ok := f.accounts[tenantID+"/"+code]
	if !ok {
		return nil, domain.NewGovernanceError(domain.ErrAccountNotFound, tenantID+"/"+code)
	}
	return a, nil
}

func (f *fakeAccountRepo) Create(ctx context.Context, account domain.Account) error {
	f.accounts[account.TenantID+"/"+account.Code] = &account
	return nil
}

func (f *fakeAccountRepo) Deactivate(ctx context.Context, tenantID, code string) error {
	a, ok := f.accounts[tenantID+"/"+code]
	if !ok {
		return domain.NewGovernanceError(domain.ErrAccountNotFound, tenantID+"/"+code)
	}
	a.IsActive = false
	return nil
}

func signedTestToken(t *testing.T, tenantID string) string {
	t.Helper()
	claims := Claims{TenantID: tenantID, ActorID: "actor-1"}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func newTestRouter(repo *fakeAccountRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	protected := router.Group("/api/v1")
	protected.Use(AuthMiddleware(testJWTSecret))
	NewAccountHandler(repo, nil).RegisterRoutes(protected)
	return router
}

func TestAccountHandler_Status_Found(t *testing.T) {
	repo := newFakeAccountRepo(domain.Account{
		TenantID:      "tenant-a",
		Code:          "1000",
		Name:          "Cash",
		Type:          domain.AccountTypeAsset,
		NormalBalance: domain.NormalBalanceDebit,
		IsActive:      true,
	})
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/1000/status", nil)
	req.Header.Set("Authorization", "Bearer "+signedTestToken(t, "tenant-a"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_active":true`)
}

func TestAccountHandler_Status_NotFound(t *testing.T) {
	router := newTestRouter(newFakeAccountRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/9999/status", nil)
	req.Header.Set("Authorization", "Bearer "+signedTestToken(t, "tenant-a"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccountHandler_Status_WrongTenantCannotSeeOtherTenantsAccount(t *testing.T) {
	repo := newFakeAccountRepo(domain.Account{
		TenantID: "tenant-a", Code: "1000", IsActive: true,
		Type: domain.AccountTypeAsset, NormalBalance: domain.NormalBalanceDebit,
	})
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/1000/status", nil)
	req.Header.Set("Authorization", "Bearer "+signedTestToken(t, "tenant-b"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccountHandler_Status_MissingToken(t *testing.T) {
	router := newTestRouter(newFakeAccountRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/1000/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
