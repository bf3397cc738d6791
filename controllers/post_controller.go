package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wecare-app/wecare-backend/config"
	"github.com/wecare-app/wecare-backend/models"
	"github.com/wecare-app/wecare-backend/realtime"
	"github.com/wecare-app/wecare-backend/utils"
)

// PostController manages the post aggregate: creation, the feed, and the
// reaction/comment/read-receipt mutations, plus the reaction event stream.
type PostController struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, hub *realtime.Hub) *PostController {
	return &PostController{db: db, hub: hub}
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Content   string         `json:"content"`
		Type      string         `json:"type"`
		Mood      string         `json:"mood"`
		Media     []models.Media `json:"media"`
		Anonymous bool           `json:"anonymous"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	content := utils.Sanitize(strings.TrimSpace(req.Content))
	if content == "" && len(req.Media) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40021, "content cannot be empty")
		return
	}
	if utf8.RuneCountInString(content) > models.MaxPostContentLen {
		utils.Error(ctx, http.StatusBadRequest, 40022, "content exceeds 500 characters")
		return
	}
	for _, m := range req.Media {
		if m.Kind != "image" && m.Kind != "video" {
			utils.Error(ctx, http.StatusBadRequest, 40023, "media kind must be image or video")
			return
		}
	}

	postType := utils.Sanitize(strings.TrimSpace(req.Type))
	mood := utils.Sanitize(strings.TrimSpace(req.Mood))
	if utf8.RuneCountInString(postType) > models.MaxPostMetaLen ||
		utf8.RuneCountInString(mood) > models.MaxPostMetaLen {
		utils.Error(ctx, http.StatusBadRequest, 40024, "type and mood must be at most 32 characters")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var author models.User
	if err := p.db.First(&author, userID).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	post := models.NewPost(userID, author.DisplayName, author.Pseudonym, content, req.Media, req.Anonymous)
	post.Type = postType
	post.Mood = mood
	if err := p.db.Create(post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}

	utils.InvalidateByPrefix(utils.CacheFeedPrefix)

	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts returns the reverse-chronological feed, paginated. Anonymous
// reads are allowed unless FeedRequireAuth is set; authenticated callers
// additionally get their own reaction per post.
func (p *PostController) ListPosts(ctx *gin.Context) {
	userID, authed := getUserID(ctx)
	if config.Get().FeedRequireAuth && !authed {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "authentication required")
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	// The cached page is identity-free, so only anonymous readers share it.
	cacheKey := fmt.Sprintf("%spage=%d:size=%d", utils.CacheFeedPrefix, page, pageSize)
	if !authed {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	var posts []models.Post
	var total int64

	query := p.db.Model(&models.Post{}).Order("created_at DESC")
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return
	}
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	items := make([]gin.H, 0, len(posts))
	for i := range posts {
		posts[i].Normalize()
		item := gin.H{
			"post":      &posts[i],
			"reactions": posts[i].ReactionCounts(),
		}
		if authed {
			item["user_reaction"] = posts[i].UserReaction(userID)
		}
		items = append(items, item)
	}

	payload := gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
	if !authed {
		wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post aggregate. The identity-free view is
// cached for anonymous callers; mutations invalidate it by prefix.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := parsePostID(ctx)
	if !ok {
		return
	}
	userID, authed := getUserID(ctx)

	cacheKey := utils.CachePostDetailPrefix + strconv.Itoa(int(postID))
	if !authed {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}
	post.Normalize()

	payload := gin.H{
		"post":      &post,
		"reactions": post.ReactionCounts(),
	}
	if authed {
		payload["user_reaction"] = post.UserReaction(userID)
	} else {
		wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, time.Hour)
	}
	utils.Success(ctx, payload)
}

// DeletePost allows the author (or an admin) to delete their post.
func (p *PostController) DeletePost(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	if post.UserID != userID && !p.isAdmin(userID) {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}

	if err := p.db.Delete(post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix(utils.CacheFeedPrefix)
	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + strconv.Itoa(int(post.ID)))

	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// React applies, switches, or removes the caller's reaction on a post. The
// read-modify-write cycle is serialized per post; the fanout event goes out
// only after the aggregate write has committed.
func (p *PostController) React(ctx *gin.Context) {
	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	pseudonym := getPseudonym(ctx)

	postID, ok := parsePostID(ctx)
	if !ok {
		return
	}

	unlock := utils.LockPost(postID)
	defer unlock()

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}

	resulting, err := post.ApplyReaction(userID, pseudonym, req.Reaction)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "reaction key is not valid")
		return
	}

	// Whole-aggregate write; partial field updates would let the member
	// sets and the user index drift apart.
	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to save reaction")
		return
	}

	counts := post.ReactionCounts()
	event := realtime.ReactionEvent{PostID: post.ID, Reactions: counts}
	if config.Get().FanoutIncludeMembers {
		event.Members = post.Reactions.MemberPseudonyms()
	}
	p.hub.Publish(event)

	utils.InvalidateByPrefix(utils.CacheFeedPrefix)
	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + strconv.Itoa(int(post.ID)))

	utils.Success(ctx, gin.H{
		"post_id":       post.ID,
		"reactions":     counts,
		"user_reaction": resulting,
	})
}

// CreateComment appends a comment (optionally threaded) to a post.
func (p *PostController) CreateComment(ctx *gin.Context) {
	var req struct {
		Text     string `json:"text" binding:"required"`
		ParentID string `json:"parent_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	pseudonym := getPseudonym(ctx)

	postID, ok := parsePostID(ctx)
	if !ok {
		return
	}

	unlock := utils.LockPost(postID)
	defer unlock()

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load post")
		return
	}

	comment, err := post.AddComment(userID, pseudonym, utils.Sanitize(req.Text), strings.TrimSpace(req.ParentID))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyText):
			utils.Error(ctx, http.StatusBadRequest, 40041, "comment text cannot be empty")
		case errors.Is(err, models.ErrTextTooLong):
			utils.Error(ctx, http.StatusBadRequest, 40042, "comment text exceeds 300 characters")
		case errors.Is(err, models.ErrCyclicParent):
			utils.Error(ctx, http.StatusBadRequest, 40043, "invalid parent comment")
		default:
			utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		}
		return
	}

	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to save comment")
		return
	}

	// The feed page embeds comments, so it goes stale too.
	utils.InvalidateByPrefix(utils.CacheFeedPrefix)
	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + strconv.Itoa(int(post.ID)))

	utils.Success(ctx, gin.H{"comment": comment})
}

// MarkRead records the caller's pseudonym in the post's read-by window.
func (p *PostController) MarkRead(ctx *gin.Context) {
	_, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	pseudonym := getPseudonym(ctx)

	postID, ok := parsePostID(ctx)
	if !ok {
		return
	}

	unlock := utils.LockPost(postID)
	defer unlock()

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load post")
		return
	}

	post.Normalize()
	readBy := post.MarkRead(pseudonym)

	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to save read receipt")
		return
	}

	// The feed page embeds read_by, so it goes stale too.
	utils.InvalidateByPrefix(utils.CacheFeedPrefix)
	utils.InvalidateByPrefix(utils.CachePostDetailPrefix + strconv.Itoa(int(post.ID)))

	utils.Success(ctx, gin.H{"read_by": readBy})
}

// UploadMedia handles media uploads for posts and returns the stored URL
// plus its kind.
func (p *PostController) UploadMedia(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "no file uploaded")
		return
	}
	defer file.Close()

	const maxSize = 50 * 1024 * 1024
	if header.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40052, "file size exceeds 50MB")
		return
	}

	kind := "image"
	if strings.HasPrefix(header.Header.Get("Content-Type"), "video") {
		kind = "video"
	}

	now := time.Now()
	baseDir := filepath.Join(".", "static", "uploads", now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create upload directory")
		return
	}

	fname := filepath.Base(header.Filename)
	if fname == "." || fname == "" {
		fname = fmt.Sprintf("file_%d", now.UnixNano())
	}
	// prevent collisions: prefix with timestamp and user id
	safeName := fmt.Sprintf("%d_%d_%s", now.UnixNano(), userID, fname)
	dstPath := filepath.Join(baseDir, safeName)

	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to save file")
		return
	}
	defer out.Close()

	lr := &io.LimitedReader{R: file, N: maxSize + 1}
	written, err := io.Copy(out, lr)
	if err != nil || written > maxSize {
		_ = out.Close()
		_ = os.Remove(dstPath)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to write file")
		} else {
			utils.Error(ctx, http.StatusBadRequest, 40052, "file size exceeds 50MB")
		}
		return
	}

	relURL := fmt.Sprintf("/static/uploads/%s/%s/%s/%s", now.Format("2006"), now.Format("01"), now.Format("02"), safeName)

	cfg := config.Get()
	expireAt := now.Add(time.Duration(cfg.UploadsSelfDestructMinutes) * time.Minute)
	absPath, _ := filepath.Abs(dstPath)
	record := models.MediaFile{
		UserID:   userID,
		FilePath: absPath,
		URL:      relURL,
		Kind:     kind,
		ExpireAt: expireAt,
	}
	if err := p.db.Create(&record).Error; err != nil {
		utils.Sugar.Warnf("failed to record media file %s: %v", relURL, err)
	}

	utils.Success(ctx, gin.H{"url": relURL, "kind": kind})
}

// StreamReactions serves the reaction event stream over SSE. Delivery is
// best-effort: a client connecting after an event only sees later ones.
func (p *PostController) StreamReactions(ctx *gin.Context) {
	ctx.Writer.Header().Set("Content-Type", "text/event-stream")
	ctx.Writer.Header().Set("Cache-Control", "no-cache")
	ctx.Writer.Header().Set("Connection", "keep-alive")

	events, cancel := p.hub.Subscribe()
	defer cancel()

	ctx.Writer.WriteHeader(http.StatusOK)
	ctx.Writer.Flush()

	for {
		select {
		case <-ctx.Request.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			ctx.SSEvent("reaction", ev)
			ctx.Writer.Flush()
		}
	}
}

func (p *PostController) loadPost(ctx *gin.Context) (*models.Post, bool) {
	postID, ok := parsePostID(ctx)
	if !ok {
		return nil, false
	}
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return nil, false
	}
	return &post, true
}

func (p *PostController) isAdmin(userID uint) bool {
	cfg := config.Get()
	if len(cfg.AdminEmails) == 0 {
		return false
	}
	var user models.User
	if err := p.db.First(&user, userID).Error; err != nil {
		return false
	}
	for _, e := range cfg.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), user.Email) {
			return true
		}
	}
	return false
}

func parsePostID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusNotFound, 40400, "post not found")
		return 0, false
	}
	return uint(id), true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
