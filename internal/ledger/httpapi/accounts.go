package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/ledgerflow/internal/ledger/coa"
	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

type accountStatusDTO struct {
	Code          string `json:"code"`
	Type          string `json:"type"`
	NormalBalance string `json:"normal_balance"`
	IsActive      bool   `json:"is_active"`
}

// AccountHandler exposes the cached chart-of-accounts status lookup.
type AccountHandler struct {
	cache *coa.CachedValidator
	repo  coa.Repository
}

func NewAccountHandler(repo coa.Repository, cache *coa.CachedValidator) *AccountHandler {
	return &AccountHandler{repo: repo, cache: cache}
}

func (h *AccountHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/accounts/:code/status", h.Status)
}

func (h *AccountHandler) Status(c *gin.Context) {
	code := c.Param("code")
	tenant := tenantID(c)
	if tenant == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "token is missing tenant_id")
		return
	}

	var (
		account *domain.Account
		err     error
	)
	if h.cache != nil {
		account, err = h.cache.Status(c.Request.Context(), tenant, code)
	} else {
		account, err = h.repo.Get(c.Request.Context(), tenant, code)
	}
	if err != nil {
		handleDomainError(c, err)
		return
	}

	respond(c, http.StatusOK, accountStatusDTO{
		Code:          account.Code,
		Type:          string(account.Type),
		NormalBalance: string(account.NormalBalance),
		IsActive:      account.IsActive,
	})
}
