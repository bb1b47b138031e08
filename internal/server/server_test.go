package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Qu1et-Harbor-Lantern"

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
		_ = sqlDB.Close()
	})

	cfg := &config.Config{
		JWTSecret:      "test-secret-with-enough-entropy-0123456789",
		JWTIssuer:      "agora-test",
		JWTAudience:    "agora-test-clients",
		Env:            "test",
		AllowedOrigins: "http://localhost:5173",
	}
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	return &testEnv{srv: s, app: s.NewApp(), db: db, mr: mr}
}

// do sends a JSON request and decodes the response body into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out), "%s %s", method, path)
	}
	return resp.StatusCode
}

type registered struct {
	User    models.User `json:"user"`
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
}

func (e *testEnv) register(t *testing.T, username string) registered {
	t.Helper()
	var res registered
	status := e.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	}, &res)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, res.Access)
	return res
}

func (e *testEnv) promote(t *testing.T, userID uint) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.User{}).Where("id = ?", userID).Update("is_admin", true).Error)
}

func (e *testEnv) createCategory(t *testing.T, adminToken, name string) models.Category {
	t.Helper()
	var category models.Category
	status := e.do(t, http.MethodPost, "/api/admin/categories", adminToken, fiber.Map{"name": name}, &category)
	require.Equal(t, http.StatusCreated, status)
	return category
}

func (e *testEnv) createPost(t *testing.T, token string, body fiber.Map) models.Post {
	t.Helper()
	var post models.Post
	status := e.do(t, http.MethodPost, "/api/posts", token, body, &post)
	require.Equal(t, http.StatusCreated, status)
	return post
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	var live map[string]any
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", nil, &live))
	assert.Equal(t, "up", live["status"])

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Checks["database"])
	assert.Equal(t, "healthy", ready.Checks["redis"])

	env.mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "unhealthy", ready.Checks["redis"])
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	assert.Equal(t, "alice", alice.User.Username)

	var conflict models.ErrorResponse
	status := env.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": "alice", "email": "other@example.com", "password": testPassword,
	}, &conflict)
	assert.Equal(t, http.StatusConflict, status)

	var bad models.ErrorResponse
	status = env.do(t, http.MethodPost, "/api/auth/token", "", fiber.Map{"username": "alice", "password": "nope"}, &bad)
	assert.Equal(t, http.StatusUnauthorized, status)

	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/auth/token", "",
		fiber.Map{"username": "alice", "password": testPassword}, &pair))

	var refreshed map[string]string
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/auth/token/refresh", "",
		fiber.Map{"refresh": pair.Refresh}, &refreshed))
	assert.NotEmpty(t, refreshed["access"])

	assert.Equal(t, http.StatusUnauthorized,
		env.do(t, http.MethodPost, "/api/auth/logout", "", fiber.Map{"refresh_token": pair.Refresh}, nil))
	assert.Equal(t, http.StatusResetContent,
		env.do(t, http.MethodPost, "/api/auth/logout", pair.Access, fiber.Map{"refresh_token": pair.Refresh}, nil))
	assert.Equal(t, http.StatusUnauthorized,
		env.do(t, http.MethodPost, "/api/auth/token/refresh", "", fiber.Map{"refresh": pair.Refresh}, &bad))
}

func TestPostsAndVisibility(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	boss := env.register(t, "boss")
	env.promote(t, boss.User.ID)

	assert.Equal(t, http.StatusForbidden,
		env.do(t, http.MethodPost, "/api/admin/categories", alice.Access, fiber.Map{"name": "Go"}, nil))
	category := env.createCategory(t, boss.Access, "Go")

	var categories []models.Category
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/categories", "", nil, &categories))
	require.Len(t, categories, 1)

	public := env.createPost(t, alice.Access, fiber.Map{
		"title": "Hello", "content": "First post", "category_id": category.ID,
	})
	assert.True(t, public.IsActive)
	assert.True(t, public.IsShow)
	hidden := env.createPost(t, alice.Access, fiber.Map{
		"title": "Draft", "content": "Not yet", "is_show": false,
	})

	assert.Equal(t, http.StatusUnauthorized,
		env.do(t, http.MethodPost, "/api/posts", "", fiber.Map{"title": "x", "content": "y"}, nil))

	var feed []models.Post
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts", "", nil, &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, public.ID, feed[0].ID)
	assert.Equal(t, "alice", feed[0].Author)

	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodGet, fmt.Sprintf("/api/posts?category=%d", category.ID+1), "", nil, &feed))
	assert.Empty(t, feed)

	var mine []models.Post
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts/mine", alice.Access, nil, &mine))
	assert.Len(t, mine, 2)

	hiddenPath := fmt.Sprintf("/api/posts/%d", hidden.ID)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, hiddenPath, bob.Access, nil, nil))
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, hiddenPath, alice.Access, nil, nil))

	publicPath := fmt.Sprintf("/api/posts/%d", public.ID)
	assert.Equal(t, http.StatusForbidden,
		env.do(t, http.MethodPatch, publicPath, bob.Access, fiber.Map{"title": "Mine now"}, nil))
	var updated models.Post
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPatch, publicPath, alice.Access, fiber.Map{"title": "Hello again"}, &updated))
	assert.Equal(t, "Hello again", updated.Title)
	assert.Equal(t, "First post", updated.Content)

	var snapshot []models.Post
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/posts?is_show=false", boss.Access, nil, &snapshot))
	require.Len(t, snapshot, 1)
	assert.Equal(t, hidden.ID, snapshot[0].ID)

	var deactivated models.Post
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPatch, publicPath+"/active", boss.Access,
		fiber.Map{"is_active": false}, &deactivated))
	assert.False(t, deactivated.IsActive)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, publicPath+"/active", boss.Access, fiber.Map{}, nil))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts", "", nil, &feed))
	assert.Empty(t, feed)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, hiddenPath, bob.Access, nil, nil))
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, hiddenPath, alice.Access, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, hiddenPath, alice.Access, nil, nil))
}

func TestLikesAndComments(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	boss := env.register(t, "boss")
	env.promote(t, boss.User.ID)

	post := env.createPost(t, alice.Access, fiber.Map{"title": "Hello", "content": "First post"})
	likePath := fmt.Sprintf("/api/posts/%d/like", post.ID)
	commentsPath := fmt.Sprintf("/api/posts/%d/comments", post.ID)

	var like struct {
		Status     string `json:"status"`
		LikesCount int64  `json:"likes_count"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, likePath, bob.Access, nil, &like))
	assert.Equal(t, "liked", like.Status)
	assert.EqualValues(t, 1, like.LikesCount)

	var viewed models.Post
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), bob.Access, nil, &viewed))
	assert.True(t, viewed.Liked)
	assert.Equal(t, 1, viewed.LikesCount)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, likePath, bob.Access, nil, &like))
	assert.Equal(t, "unliked", like.Status)
	assert.EqualValues(t, 0, like.LikesCount)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/posts/999/like", bob.Access, nil, nil))

	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, commentsPath, bob.Access, fiber.Map{"content": "   "}, nil))
	var comment models.Comment
	require.Equal(t, http.StatusCreated,
		env.do(t, http.MethodPost, commentsPath, bob.Access, fiber.Map{"content": "Nice one"}, &comment))

	var comments []models.Comment
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, commentsPath, "", nil, &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "bob", comments[0].Author)

	commentPath := fmt.Sprintf("/api/comments/%d", comment.ID)
	assert.Equal(t, http.StatusForbidden,
		env.do(t, http.MethodPatch, commentPath, alice.Access, fiber.Map{"content": "edited"}, nil))
	var edited models.Comment
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPatch, commentPath, bob.Access, fiber.Map{"content": "Very nice"}, &edited))
	assert.Equal(t, "Very nice", edited.Content)

	var snippets []map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/comments", boss.Access, nil, &snippets))
	require.Len(t, snippets, 1)
	assert.Equal(t, "Very nice", snippets[0]["snippet"])

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, commentPath, alice.Access, nil, nil))
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, commentPath, boss.Access, nil, nil))
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, commentsPath, "", nil, &comments))
	assert.Empty(t, comments)
}

func TestProfilesAndFollows(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.createPost(t, alice.Access, fiber.Map{"title": "Hello", "content": "First post"})
	env.createPost(t, alice.Access, fiber.Map{"title": "Draft", "content": "Not yet", "is_show": false})

	var mine models.Profile
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/profile", alice.Access, nil, &mine))
	assert.Equal(t, "alice", mine.Username)
	assert.Equal(t, "alice@example.com", mine.Email)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/profile", "", nil, nil))

	var patched models.Profile
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPatch, "/api/profile", alice.Access,
		fiber.Map{"bio": "Writes about Go", "first_name": "Alice"}, &patched))
	assert.Equal(t, "Writes about Go", patched.Bio)
	assert.Equal(t, "Alice", patched.FirstName)

	var follow struct {
		Status         string `json:"status"`
		FollowersCount int64  `json:"followers_count"`
	}
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/profiles/alice/follow", alice.Access, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/profiles/nobody/follow", alice.Access, nil, nil))
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/profiles/alice/follow", bob.Access, nil, &follow))
	assert.Equal(t, "followed", follow.Status)
	assert.EqualValues(t, 1, follow.FollowersCount)

	var view struct {
		Profile models.Profile `json:"profile"`
		Posts   []models.Post  `json:"posts"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/profiles/alice", "", nil, &view))
	assert.Equal(t, "alice", view.Profile.Username)
	assert.Empty(t, view.Profile.Email)
	assert.Equal(t, 1, view.Profile.FollowersCount)
	assert.Len(t, view.Posts, 1)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/profiles/alice", bob.Access, nil, &view))
	assert.True(t, view.Profile.IsFollowing)

	var followers []models.Profile
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/profiles/alice/followers", "", nil, &followers))
	require.Len(t, followers, 1)
	assert.Equal(t, "bob", followers[0].Username)

	var following []models.Profile
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/profiles/alice/following", "", nil, &following))
	assert.Empty(t, following)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/profiles/alice/follow", bob.Access, nil, &follow))
	assert.Equal(t, "unfollowed", follow.Status)
	assert.EqualValues(t, 0, follow.FollowersCount)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/profiles/nobody", "", nil, nil))
}

func TestNotificationsRouteRequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/ws/notifications", "", nil, nil))
	assert.Equal(t, http.StatusUpgradeRequired, env.do(t, http.MethodGet, "/api/ws/notifications", alice.Access, nil, nil))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
