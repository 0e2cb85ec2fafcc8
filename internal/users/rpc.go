package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linkup/linkup/backend/go-services/internal/userclient"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/middleware"
)

// maxBatch bounds one getUsersByUserIDs call.
const maxBatch = 100

// RPCHandler serves the internal API consumed through userclient.
type RPCHandler struct {
	svc *Service
}

func NewRPCHandler(svc *Service) *RPCHandler {
	return &RPCHandler{svc: svc}
}

// Register mounts the internal routes behind the shared service secret.
func (h *RPCHandler) Register(r *gin.Engine, secret string) {
	g := r.Group("", middleware.RequireServiceSecret(secret))
	g.POST(userclient.PathGetUser, h.getUser)
	g.POST(userclient.PathGetUsers, h.getUsers)
	g.POST(userclient.PathConnectionIDs, h.connectionIDs)
	g.POST(userclient.PathCredentials, h.credentials)
	g.POST(userclient.PathRegister, h.register)
}

func rpcError(c *gin.Context, status int, msg string) {
	c.JSON(status, userclient.ErrorResponse{Error: msg})
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (h *RPCHandler) getUser(c *gin.Context) {
	var req userclient.UserRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validID(req.UserID) {
		rpcError(c, http.StatusBadRequest, "userID required")
		return
	}
	u, err := h.svc.Summary(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			rpcError(c, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorw("rpc getUserByUserID failed", "userID", req.UserID, "err", err)
		rpcError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, userclient.UserResponse{User: *u})
}

// getUsers answers with whatever ids exist; an empty result is not an error.
func (h *RPCHandler) getUsers(c *gin.Context) {
	var req userclient.UsersRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.UserIDs) > maxBatch {
		rpcError(c, http.StatusBadRequest, "userIDs invalid")
		return
	}
	ids := make([]string, 0, len(req.UserIDs))
	for _, id := range req.UserIDs {
		if !validID(id) {
			rpcError(c, http.StatusBadRequest, "userIDs invalid")
			return
		}
		ids = append(ids, id)
	}
	users, err := h.svc.Summaries(c.Request.Context(), ids)
	if err != nil {
		logger.Errorw("rpc getUsersByUserIDs failed", "count", len(ids), "err", err)
		rpcError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, userclient.UsersResponse{Users: users})
}

func (h *RPCHandler) connectionIDs(c *gin.Context) {
	var req userclient.UserRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validID(req.UserID) {
		rpcError(c, http.StatusBadRequest, "userID required")
		return
	}
	ids, err := h.svc.ConnectionIDs(c.Request.Context(), req.UserID)
	if err != nil {
		logger.Errorw("rpc getConnectionUserIDs failed", "userID", req.UserID, "err", err)
		rpcError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, userclient.ConnectionIDsResponse{UserIDs: ids})
}

func (h *RPCHandler) credentials(c *gin.Context) {
	var req userclient.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		rpcError(c, http.StatusBadRequest, "email required")
		return
	}
	creds, err := h.svc.Credentials(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			rpcError(c, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorw("rpc getUserIdPass failed", "err", err)
		rpcError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, creds)
}

func (h *RPCHandler) register(c *gin.Context) {
	var req userclient.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.Email == "" || req.HashedPassword == "" {
		rpcError(c, http.StatusBadRequest, "name, email and hashedPassword required")
		return
	}
	id, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.HashedPassword)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			rpcError(c, http.StatusConflict, "email already exist")
			return
		}
		logger.Errorw("rpc userRegistration failed", "err", err)
		rpcError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusCreated, userclient.RegisterResponse{UserID: id})
}
