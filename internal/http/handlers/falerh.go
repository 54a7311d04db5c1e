package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/falerh"
	"rh-portal-be/internal/http/middleware"
)

// FaleRHHandler serves both the employee and the admin routes. Which rules
// apply is decided by the service from the caller's role.
type FaleRHHandler struct {
	Service *falerh.Service
}

func (h *FaleRHHandler) Create(c *gin.Context) {
	actor := middleware.MustPrincipal(c)

	var req falerh.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "invalid body")
		return
	}

	d, out, err := h.Service.CreateConversation(c.Request.Context(), actor, req)
	if err != nil {
		respondFailure(c, err)
		return
	}
	if !out.Applied {
		respondRejected(c, actor, out)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *FaleRHHandler) List(c *gin.Context) {
	var filter falerh.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_query", "invalid query")
		return
	}

	page, err := h.Service.ListConversations(c.Request.Context(), middleware.MustPrincipal(c), filter)
	if err != nil {
		respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *FaleRHHandler) Get(c *gin.Context) {
	d, err := h.Service.GetConversation(c.Request.Context(), middleware.MustPrincipal(c), c.Param("id"))
	if err != nil {
		respondFailure(c, err)
		return
	}
	if d == nil {
		respondError(c, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *FaleRHHandler) SendMessage(c *gin.Context) {
	actor := middleware.MustPrincipal(c)

	var req falerh.MessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "invalid body")
		return
	}

	msg, out, err := h.Service.SendMessage(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondFailure(c, err)
		return
	}
	if !out.Applied {
		respondRejected(c, actor, out)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *FaleRHHandler) Accept(c *gin.Context) {
	h.transition(c, h.Service.AcceptConversation)
}

func (h *FaleRHHandler) Close(c *gin.Context) {
	h.transition(c, h.Service.CloseConversation)
}

func (h *FaleRHHandler) MarkRead(c *gin.Context) {
	h.transition(c, h.Service.MarkRead)
}

type transitionFunc func(ctx context.Context, actor auth.Principal, id string) (falerh.Outcome, error)

func (h *FaleRHHandler) transition(c *gin.Context, fn transitionFunc) {
	actor := middleware.MustPrincipal(c)

	out, err := fn(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondFailure(c, err)
		return
	}
	if !out.Applied {
		respondRejected(c, actor, out)
		return
	}
	c.JSON(http.StatusOK, out)
}
