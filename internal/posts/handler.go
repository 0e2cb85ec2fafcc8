package posts

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/internal/validate"
	"github.com/linkup/linkup/backend/go-services/pkg/middleware"
)

type PostRequest struct {
	Content string `json:"content" binding:"required,min=1,max=700"`
}

func (r *PostRequest) Normalize() { r.Content = strings.TrimSpace(r.Content) }

type CommentRequest struct {
	Comment string `json:"comment" binding:"required,min=1,max=500"`
}

func (r *CommentRequest) Normalize() { r.Comment = strings.TrimSpace(r.Comment) }

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the post routes on rg (/api/v1).
func (h *Handler) Register(rg *gin.RouterGroup, authn gin.HandlerFunc) {
	csrf := middleware.RequireCSRF()

	rg.GET("/feed", authn, h.Feed)
	rg.GET("/me/posts", authn, h.OwnPosts)
	rg.GET("/trending", authn, h.Trending)

	p := rg.Group("/posts")
	p.POST("", authn, csrf, h.Create)
	p.GET("/:postID", h.Get)
	p.DELETE("/:postID", authn, csrf, h.Delete)
	p.GET("/:postID/likes", authn, h.Likes)
	p.GET("/:postID/likes/count", authn, h.LikeCount)
	p.POST("/:postID/likes", authn, csrf, h.AddLike)
	p.DELETE("/:postID/likes", authn, csrf, h.DeleteLike)
	p.GET("/:postID/comments", authn, h.Comments)
	p.GET("/:postID/comments/count", authn, h.CommentCount)
	p.POST("/:postID/comments", authn, csrf, h.AddComment)
	p.DELETE("/:postID/comments/:commentID", authn, csrf, h.DeleteComment)
}

func postID(c *gin.Context) (string, bool) {
	id, err := validate.Param(c, "postID")
	if err != nil {
		apperr.Fail(c, err)
		return "", false
	}
	return id, true
}

func (h *Handler) Feed(c *gin.Context) {
	page, err := h.svc.Feed(c.Request.Context(), middleware.UserID(c), c.Query("cursor"))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": page.Items, "nextCursor": page.NextCursor})
}

func (h *Handler) OwnPosts(c *gin.Context) {
	page, err := h.svc.OwnPosts(c.Request.Context(), middleware.UserID(c), c.Query("cursor"))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": page.Items, "nextCursor": page.NextCursor})
}

func (h *Handler) Trending(c *gin.Context) {
	posts, err := h.svc.Trending(c.Request.Context())
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": posts})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	p, err := h.svc.Post(c.Request.Context(), id)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": p})
}

func (h *Handler) Create(c *gin.Context) {
	var req PostRequest
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	p, err := h.svc.CreatePost(c.Request.Context(), middleware.UserID(c), req.Content)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": p})
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	if err := h.svc.DeletePost(c.Request.Context(), middleware.UserID(c), id); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Likes(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	page, err := h.svc.Likes(c.Request.Context(), id, c.Query("cursor"))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "likes": page.Items, "nextCursor": page.NextCursor})
}

func (h *Handler) LikeCount(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	n, err := h.svc.LikeCount(c.Request.Context(), id)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (h *Handler) AddLike(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	l, err := h.svc.AddLike(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "like": l})
}

func (h *Handler) DeleteLike(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteLike(c.Request.Context(), middleware.UserID(c), id); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Comments(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	page, err := h.svc.Comments(c.Request.Context(), id, c.Query("cursor"))
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "comments": page.Items, "nextCursor": page.NextCursor})
}

func (h *Handler) CommentCount(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	n, err := h.svc.CommentCount(c.Request.Context(), id)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (h *Handler) AddComment(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	var req CommentRequest
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	cm, err := h.svc.AddComment(c.Request.Context(), middleware.UserID(c), id, req.Comment)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "comment": cm})
}

func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	commentID, err := validate.Param(c, "commentID")
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	if err := h.svc.DeleteComment(c.Request.Context(), middleware.UserID(c), id, commentID); err != nil {
		apperr.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
