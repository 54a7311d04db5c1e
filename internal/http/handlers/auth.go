package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/models"
	"rh-portal-be/internal/store"
)

type AuthHandler struct {
	Store  *store.Store
	Issuer *auth.Issuer
}

type registerReq struct {
	Matricula string `json:"matricula" binding:"required,max=32"`
	Name      string `json:"name" binding:"required,max=120"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	Role      string `json:"role" binding:"required"`
}

// Register provisions an account. It is mounted under the admin group.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "invalid body")
		return
	}

	role, ok := auth.NormalizeRole(req.Role)
	if !ok {
		respondError(c, http.StatusBadRequest, "invalid_body", "unknown role")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondFailure(c, err)
		return
	}

	u := models.User{
		Matricula:    strings.TrimSpace(req.Matricula),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Role:         role.String(),
		PasswordHash: string(hash),
	}
	if err := h.Store.CreateUser(c.Request.Context(), &u); err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusConflict, "conflict", "matricula or email already registered")
		return
	}

	c.JSON(http.StatusCreated, u)
}

type loginReq struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login accepts a matricula or an e-mail.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "invalid body")
		return
	}

	u, err := h.Store.FindUserByLogin(c.Request.Context(), strings.TrimSpace(req.Login))
	if err != nil {
		respondFailure(c, err)
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		respondError(c, http.StatusUnauthorized, "unauthorized", "wrong login/password")
		return
	}

	role, ok := auth.NormalizeRole(u.Role)
	if !ok {
		respondError(c, http.StatusForbidden, "forbidden", "account has no portal access")
		return
	}

	token, exp, err := h.Issuer.Issue(auth.Principal{ID: u.ID, Role: role, Matricula: u.Matricula, Name: u.Name})
	if err != nil {
		respondFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"expires_at":   exp,
		"user": gin.H{
			"id":        u.ID,
			"matricula": u.Matricula,
			"name":      u.Name,
			"role":      role,
		},
	})
}
