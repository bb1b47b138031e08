package repository

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"agora/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := &models.Post{Title: "Test Post", Content: "Content", UserID: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, post)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), post.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_SetActive_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "is_active"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.SetActive(context.Background(), 42, false)
	assert.Equal(t, http.StatusNotFound, models.StatusFor(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByID_Details(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author")
	reader := createUser(t, db, "reader")
	post := createPost(t, db, author, "Hello", true, true)

	require.NoError(t, db.Create(&models.Comment{Content: "first", UserID: reader.ID, PostID: post.ID}).Error)
	require.NoError(t, db.Create(&models.Comment{Content: "second", UserID: author.ID, PostID: post.ID}).Error)
	require.NoError(t, repo.Like(ctx, reader.ID, post.ID))

	got, err := repo.GetByID(ctx, post.ID, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, "author", got.Author)
	assert.Equal(t, 1, got.LikesCount)
	assert.Equal(t, 2, got.CommentsCount)
	assert.True(t, got.Liked)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "first", got.Comments[0].Content)
	assert.Equal(t, "reader", got.Comments[0].Author)

	anon, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, anon.Liked)

	_, err = repo.GetByID(ctx, 999, 0)
	assert.Equal(t, http.StatusNotFound, models.StatusFor(err))
}

func TestPostRepository_CreateKeepsFalseFlags(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	author := createUser(t, db, "author")

	post := createPost(t, db, author, "Draft", false, true)

	got, err := repo.GetByID(context.Background(), post.ID, 0)
	require.NoError(t, err)
	assert.False(t, got.IsShow)
	assert.True(t, got.IsActive)
}

func TestPostRepository_ListVisibility(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := createUser(t, db, "author")
	other := createUser(t, db, "other")

	createPost(t, db, author, "visible", true, true)
	createPost(t, db, author, "hidden by author", false, true)
	createPost(t, db, author, "hidden by admin", true, false)
	createPost(t, db, other, "other visible", true, true)

	visible, err := repo.List(ctx, models.PostFilter{OnlyVisible: true}, 20, 0, 0)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	for _, p := range visible {
		assert.True(t, p.Visible(), p.Title)
	}
	assert.Equal(t, "other visible", visible[0].Title, "newest first")

	mine, err := repo.List(ctx, models.PostFilter{AuthorID: author.ID}, 20, 0, author.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	inactive := false
	moderated, err := repo.List(ctx, models.PostFilter{IsActive: &inactive}, 20, 0, 0)
	require.NoError(t, err)
	require.Len(t, moderated, 1)
	assert.Equal(t, "hidden by admin", moderated[0].Title)

	page, err := repo.List(ctx, models.PostFilter{OnlyVisible: true}, 1, 1, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "visible", page[0].Title)
}

func TestPostRepository_ListByCategory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := createUser(t, db, "author")

	cat := &models.Category{Name: "news"}
	require.NoError(t, db.Create(cat).Error)

	p := createPost(t, db, author, "categorised", true, true)
	p.CategoryID = &cat.ID
	require.NoError(t, repo.Update(ctx, p))
	createPost(t, db, author, "loose", true, true)

	posts, err := repo.List(ctx, models.PostFilter{OnlyVisible: true, CategoryID: &cat.ID}, 20, 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].Category)
	assert.Equal(t, "news", posts[0].Category.Name)
}

func TestPostRepository_UpdateNeverChangesAuthorOrActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := createUser(t, db, "author")
	intruder := createUser(t, db, "intruder")
	post := createPost(t, db, author, "original", true, true)

	post.Title = "edited"
	post.UserID = intruder.ID
	post.IsActive = false
	post.IsShow = false
	require.NoError(t, repo.Update(ctx, post))

	got, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Title)
	assert.Equal(t, author.ID, got.UserID)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsShow)

	require.NoError(t, repo.SetActive(ctx, post.ID, false))
	got, err = repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestPostRepository_LikeIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := createUser(t, db, "author")
	fan := createUser(t, db, "fan")
	post := createPost(t, db, author, "likeable", true, true)

	require.NoError(t, repo.Like(ctx, fan.ID, post.ID))
	require.NoError(t, repo.Like(ctx, fan.ID, post.ID))

	count, err := repo.CountLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	liked, err := repo.IsLiked(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	require.NoError(t, repo.Unlike(ctx, fan.ID, post.ID))
	liked, err = repo.IsLiked(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestPostRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := createUser(t, db, "author")
	post := createPost(t, db, author, "doomed", true, true)
	require.NoError(t, repo.Like(ctx, author.ID, post.ID))

	require.NoError(t, repo.Delete(ctx, post.ID))

	_, err := repo.GetByID(ctx, post.ID, 0)
	assert.Equal(t, http.StatusNotFound, models.StatusFor(err))
	count, err := repo.CountLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
