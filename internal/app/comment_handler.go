package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"forumsync/internal/model"
	"forumsync/internal/service"
	"forumsync/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxImageSize = 5 << 20

var allowedImageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// ImageUploader hosts comment images remotely. *util.CloudinaryClient is the
// production implementation.
type ImageUploader interface {
	UploadImage(ctx context.Context, filePath string) (string, error)
}

type CommentHandler struct {
	commentService service.CommentService
	images         ImageUploader
	uploadDir      string
	log            logrus.FieldLogger
}

// NewCommentHandler serves the comment routes. images may be nil, in which case
// attached images are kept under uploadDir and served from /uploads.
func NewCommentHandler(commentService service.CommentService, images ImageUploader, uploadDir string, log logrus.FieldLogger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		images:         images,
		uploadDir:      uploadDir,
		log:            log,
	}
}

// GetCommentsByPost returns every comment of a post, roots and replies
// GET /api/comments/post/:postId
func (h *CommentHandler) GetCommentsByPost(c *gin.Context) {
	postID, ok := idParam(c, "postId")
	if !ok {
		return
	}

	comments, err := h.commentService.GetCommentsByPostID(c.Request.Context(), postID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(comments))
}

// GetReplies returns the direct replies to a comment
// GET /api/comments/:id/replies
func (h *CommentHandler) GetReplies(c *gin.Context) {
	commentID, ok := idParam(c, "id")
	if !ok {
		return
	}

	replies, err := h.commentService.GetReplies(c.Request.Context(), commentID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(replies))
}

// CreateComment accepts JSON, or multipart/form-data when an image is attached
// POST /api/comments
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var in model.CommentInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		var ok bool
		if in, ok = h.bindMultipart(c); !ok {
			return
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		util.BadRequest(c, "content must not be empty")
		return
	}

	comment, err := h.commentService.CreateComment(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) bindMultipart(c *gin.Context) (model.CommentInput, bool) {
	var in model.CommentInput
	postID, err := strconv.ParseInt(c.PostForm("forumPostId"), 10, 64)
	if err != nil {
		util.BadRequest(c, "invalid forumPostId")
		return in, false
	}
	in.ForumPostID = postID
	in.Content = c.PostForm("content")
	in.UserEmail = c.PostForm("userEmail")
	if raw := c.PostForm("parentCommentId"); raw != "" {
		parentID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			util.BadRequest(c, "invalid parentCommentId")
			return in, false
		}
		in.ParentCommentID = &parentID
	}
	if err := binding.Validator.ValidateStruct(&in); err != nil {
		util.BadRequest(c, err.Error())
		return in, false
	}

	file, err := c.FormFile("image")
	if err != nil {
		// Multipart without an image is still a plain comment.
		return in, true
	}
	if file.Size > maxImageSize {
		util.BadRequest(c, "image exceeds 5MB")
		return in, false
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		util.BadRequest(c, fmt.Sprintf("unsupported image type %q", ext))
		return in, false
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		respondError(c, h.log, err)
		return in, false
	}
	name := uuid.NewString() + ext
	path := filepath.Join(h.uploadDir, name)
	if err := c.SaveUploadedFile(file, path); err != nil {
		respondError(c, h.log, err)
		return in, false
	}
	in.ImgPath = "/uploads/" + name

	if h.images != nil {
		url, err := h.images.UploadImage(c.Request.Context(), path)
		if err != nil {
			// The local copy stays and is served from /uploads instead.
			h.log.WithError(err).WithField("file", name).Warn("image upload failed, keeping local copy")
			return in, true
		}
		in.ImgPath = url
		if err := os.Remove(path); err != nil {
			h.log.WithError(err).WithField("file", name).Warn("failed to remove uploaded image")
		}
	}
	return in, true
}

// UpdateComment edits the content of a comment
// PUT /api/comments/:id
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	commentID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var in model.CommentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		util.BadRequest(c, "content must not be empty")
		return
	}

	comment, err := h.commentService.UpdateComment(c.Request.Context(), commentID, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DeleteComment deletes a comment and its replies
// DELETE /api/comments/:id?userEmail=
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	commentID, ok := idParam(c, "id")
	if !ok {
		return
	}
	userEmail := c.Query("userEmail")
	if userEmail == "" {
		util.BadRequest(c, "userEmail is required")
		return
	}

	if err := h.commentService.DeleteComment(c.Request.Context(), commentID, userEmail); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		util.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func nonNil(comments []*model.Comment) []*model.Comment {
	if comments == nil {
		return []*model.Comment{}
	}
	return comments
}
