package users

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/internal/pagination"
	"github.com/linkup/linkup/backend/go-services/internal/validate"
	"github.com/linkup/linkup/backend/go-services/pkg/middleware"
)

type SkillRequest struct {
	Name  string  `json:"name" binding:"required,min=1,max=50"`
	Level *string `json:"level" binding:"omitempty,oneof=beginner intermediate advanced expert"`
}

func (r *SkillRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if r.Level != nil {
		l := strings.ToLower(strings.TrimSpace(*r.Level))
		r.Level = &l
	}
}

type PasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required,min=8,max=20"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=20"`
}

func (r *PasswordRequest) Normalize() {
	r.OldPassword = strings.TrimSpace(r.OldPassword)
	r.NewPassword = strings.TrimSpace(r.NewPassword)
}

func (b *BasicInfo) Normalize() {
	for _, p := range []*string{b.Name, b.Hometown} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	if b.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*b.Gender))
		b.Gender = &g
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the public user and connection routes on rg (/api/v1).
func (h *Handler) Register(rg *gin.RouterGroup, authn gin.HandlerFunc) {
	csrf := middleware.RequireCSRF()

	rg.GET("/pictures/:name", h.Picture)

	u := rg.Group("/users")
	u.GET("/me", authn, h.Me)
	u.PATCH("/me/basic-info", authn, csrf, h.UpdateBasicInfo)
	u.PATCH("/me/password", authn, csrf, h.ChangePassword)
	u.PUT("/me/picture", authn, csrf, h.UpdatePicture)
	u.DELETE("/me/picture", authn, csrf, h.DeletePicture)
	u.POST("/me/skills", authn, csrf, h.AddSkill)
	u.PATCH("/me/skills/:skillID", authn, csrf, h.UpdateSkill)
	u.DELETE("/me/skills/:skillID", authn, csrf, h.DeleteSkill)
	u.POST("/me/work", authn, csrf, h.AddWork)
	u.PATCH("/me/work/:entryID", authn, csrf, h.UpdateWork)
	u.DELETE("/me/work/:entryID", authn, csrf, h.DeleteWork)
	u.POST("/me/education", authn, csrf, h.AddEducation)
	u.PATCH("/me/education/:entryID", authn, csrf, h.UpdateEducation)
	u.DELETE("/me/education/:entryID", authn, csrf, h.DeleteEducation)
	u.POST("/me/awards", authn, csrf, h.AddAward)
	u.PATCH("/me/awards/:entryID", authn, csrf, h.UpdateAward)
	u.DELETE("/me/awards/:entryID", authn, csrf, h.DeleteAward)
	u.GET("/:id/profile", h.Profile)
	u.GET("/:id/connections", h.Connections)
	u.GET("/:id/connections/count", h.ConnectionCount)

	conn := rg.Group("/connections", authn)
	conn.GET("/received", h.Received)
	conn.GET("/received/count", h.ReceivedCount)
	conn.GET("/sent", h.Sent)
	conn.GET("/sent/count", h.SentCount)
	conn.GET("/suggestions", h.Suggestions)
	conn.GET("/:id/relation", h.Relation)
	conn.POST("/:id/send", csrf, h.Send)
	conn.POST("/:id/accept", csrf, h.Accept)
	conn.POST("/:id/reject", csrf, h.Reject)
	conn.DELETE("/:id/request", csrf, h.Cancel)
	conn.DELETE("/:id", csrf, h.RemoveConnection)
}

func writePage(c *gin.Context, p pagination.Page[Connection]) {
	c.JSON(http.StatusOK, gin.H{"success": true, "connections": p.Items, "nextCursor": p.NextCursor})
}

func (h *Handler) Me(c *gin.Context) {
	b, err := h.svc.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": b})
}

func (h *Handler) Profile(c *gin.Context) {
	id, err := validate.Param(c, "id")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	u, err := h.svc.Profile(c.Request.Context(), id)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User profile is attached", "userProfile": u})
}

func (h *Handler) UpdateBasicInfo(c *gin.Context) {
	var req BasicInfo
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	if err := h.svc.UpdateBasicInfo(c.Request.Context(), middleware.UserID(c), req); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Basic info updated"})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req PasswordRequest
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), middleware.UserID(c), req.OldPassword, req.NewPassword); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated, please login again"})
}

func (h *Handler) AddSkill(c *gin.Context) {
	var req SkillRequest
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	sk, err := h.svc.AddSkill(c.Request.Context(), middleware.UserID(c), req.Name, req.Level)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "skill": sk})
}

func (h *Handler) UpdateSkill(c *gin.Context) {
	skillID, err := validate.Param(c, "skillID")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	var req SkillRequest
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	sk, err := h.svc.UpdateSkill(c.Request.Context(), middleware.UserID(c), skillID, req.Name, req.Level)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "skill": sk})
}

func (h *Handler) DeleteSkill(c *gin.Context) {
	skillID, err := validate.Param(c, "skillID")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	if err := h.svc.DeleteSkill(c.Request.Context(), middleware.UserID(c), skillID); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// createEntry, updateEntry and deleteEntry serve the work, education and
// award routes, which differ only in body type and response field.
func createEntry[T, R any](c *gin.Context, field string, op func(context.Context, string, T) (*R, error)) {
	var req T
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	out, err := op(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, field: out})
}

func updateEntry[T, R any](c *gin.Context, field string, op func(context.Context, string, string, T) (*R, error)) {
	id, err := validate.Param(c, "entryID")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	var req T
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	out, err := op(c.Request.Context(), middleware.UserID(c), id, req)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, field: out})
}

func deleteEntry(c *gin.Context, op func(context.Context, string, string) error) {
	id, err := validate.Param(c, "entryID")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	if err := op(c.Request.Context(), middleware.UserID(c), id); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) AddWork(c *gin.Context)    { createEntry(c, "workExperience", h.svc.AddWork) }
func (h *Handler) UpdateWork(c *gin.Context) { updateEntry(c, "workExperience", h.svc.UpdateWork) }
func (h *Handler) DeleteWork(c *gin.Context) { deleteEntry(c, h.svc.DeleteWork) }

func (h *Handler) AddEducation(c *gin.Context)    { createEntry(c, "education", h.svc.AddEducation) }
func (h *Handler) UpdateEducation(c *gin.Context) { updateEntry(c, "education", h.svc.UpdateEducation) }
func (h *Handler) DeleteEducation(c *gin.Context) { deleteEntry(c, h.svc.DeleteEducation) }

func (h *Handler) AddAward(c *gin.Context)    { createEntry(c, "award", h.svc.AddAward) }
func (h *Handler) UpdateAward(c *gin.Context) { updateEntry(c, "award", h.svc.UpdateAward) }
func (h *Handler) DeleteAward(c *gin.Context) { deleteEntry(c, h.svc.DeleteAward) }

// UpdatePicture accepts a multipart "picture" field. The content type is
// sniffed from the bytes, not taken from the client.
func (h *Handler) UpdatePicture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxPictureSize+1<<20)
	fh, err := c.FormFile("picture")
	if err != nil {
		apperr.Fail(c, apperr.Validation(msgPictureMissing))
		return
	}
	if fh.Size > MaxPictureSize {
		apperr.Fail(c, apperr.Validation(msgPictureSize))
		return
	}
	f, err := fh.Open()
	if err != nil {
		apperr.Fail(c, apperr.Validation(msgPictureMissing))
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		apperr.Fail(c, apperr.Validation(msgPictureMissing))
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)

	url, err := h.svc.UpdatePicture(c.Request.Context(), middleware.UserID(c),
		io.MultiReader(bytes.NewReader(head), f), fh.Size, contentType)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile image uploaded successfully.", "profilePictureURL": url})
}

func (h *Handler) DeletePicture(c *gin.Context) {
	if err := h.svc.DeletePicture(c.Request.Context(), middleware.UserID(c)); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Picture(c *gin.Context) {
	rc, contentType, err := h.svc.Picture(c.Request.Context(), c.Param("name"))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	defer rc.Close()
	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

func (h *Handler) Connections(c *gin.Context) {
	id, err := validate.Param(c, "id")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	p, err := h.svc.Connections(c.Request.Context(), id, c.Query("cursor"))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	writePage(c, p)
}

func (h *Handler) Received(c *gin.Context) {
	p, err := h.svc.Received(c.Request.Context(), middleware.UserID(c), c.Query("cursor"))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	writePage(c, p)
}

func (h *Handler) Sent(c *gin.Context) {
	p, err := h.svc.Sent(c.Request.Context(), middleware.UserID(c), c.Query("cursor"))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	writePage(c, p)
}

func (h *Handler) ConnectionCount(c *gin.Context) {
	id, err := validate.Param(c, "id")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	n, err := h.svc.ConnectionCount(c.Request.Context(), id)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (h *Handler) ReceivedCount(c *gin.Context) {
	n, err := h.svc.ReceivedCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (h *Handler) SentCount(c *gin.Context) {
	n, err := h.svc.SentCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (h *Handler) Suggestions(c *gin.Context) {
	users, err := h.svc.Suggestions(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

func (h *Handler) Relation(c *gin.Context) {
	id, err := validate.Param(c, "id")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	rel, err := h.svc.Relation(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "relation": rel})
}

// connectionAction runs one of the connection mutations against the :id user.
func (h *Handler) connectionAction(c *gin.Context, status int, op func(c *gin.Context, me, other string) error) {
	other, err := validate.Param(c, "id")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	if err := op(c, middleware.UserID(c), other); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(status, gin.H{"success": true})
}

func (h *Handler) Send(c *gin.Context) {
	h.connectionAction(c, http.StatusCreated, func(c *gin.Context, me, other string) error {
		return h.svc.SendRequest(c.Request.Context(), me, other)
	})
}

func (h *Handler) Accept(c *gin.Context) {
	h.connectionAction(c, http.StatusOK, func(c *gin.Context, me, other string) error {
		return h.svc.AcceptRequest(c.Request.Context(), me, other)
	})
}

func (h *Handler) Reject(c *gin.Context) {
	h.connectionAction(c, http.StatusOK, func(c *gin.Context, me, other string) error {
		return h.svc.RejectRequest(c.Request.Context(), me, other)
	})
}

func (h *Handler) Cancel(c *gin.Context) {
	h.connectionAction(c, http.StatusOK, func(c *gin.Context, me, other string) error {
		return h.svc.CancelRequest(c.Request.Context(), me, other)
	})
}

func (h *Handler) RemoveConnection(c *gin.Context) {
	h.connectionAction(c, http.StatusOK, func(c *gin.Context, me, other string) error {
		return h.svc.RemoveConnection(c.Request.Context(), me, other)
	})
}
