package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"threadboard/internal/cache"
	"threadboard/internal/model"
	"threadboard/internal/repository"
	"threadboard/internal/testutil"
	"threadboard/internal/thread"
)

type commentFixture struct {
	db      *sqlx.DB
	svc     *CommentService
	repo    repository.CommentRepository
	userID  int64
	otherID int64
	postID  int64
}

func newCommentFixture(t *testing.T, pageCache cache.CommentPageCache) *commentFixture {
	t.Helper()
	db := testutil.NewDB(t)
	userID := testutil.SeedUser(t, db, "ann")
	otherID := testutil.SeedUser(t, db, "bob")
	postID := testutil.SeedPost(t, db, userID)

	repo := repository.NewCommentRepository(db)
	svc := NewCommentService(repo, repository.NewPostRepository(db), db, pageCache, zap.NewNop())
	return &commentFixture{db: db, svc: svc, repo: repo, userID: userID, otherID: otherID, postID: postID}
}

func (f *commentFixture) root(t *testing.T, content string) *model.Comment {
	t.Helper()
	c, err := f.svc.CreateTopLevel(context.Background(), f.postID, f.userID, content)
	require.NoError(t, err)
	return c
}

func (f *commentFixture) reply(t *testing.T, parent *model.Comment, content string) *model.Comment {
	t.Helper()
	c, err := f.svc.CreateReply(context.Background(), f.postID, f.userID, content, parent.ID)
	require.NoError(t, err)
	return c
}

// positions returns id -> sequence for a group and checks the group's shape.
func (f *commentFixture) positions(t *testing.T, group int) map[int64]int {
	t.Helper()
	rows, err := f.repo.ListGroup(context.Background(), f.postID, group)
	require.NoError(t, err)

	checkRows := make([]thread.Row, len(rows))
	out := make(map[int64]int, len(rows))
	for i := range rows {
		checkRows[i] = rows[i].Row()
		out[rows[i].ID] = rows[i].Sequence
	}
	require.NoError(t, thread.Check(checkRows))
	return out
}

func (f *commentFixture) get(t *testing.T, id int64) *model.Comment {
	t.Helper()
	rows, err := f.repo.ListByPost(context.Background(), f.postID, 1000, 0)
	require.NoError(t, err)
	for i := range rows {
		if rows[i].ID == id {
			return &rows[i].Comment
		}
	}
	t.Fatalf("comment %d not found", id)
	return nil
}

func TestCommentService_FirstTopLevelComment(t *testing.T) {
	f := newCommentFixture(t, nil)

	c := f.root(t, "hello")

	assert.Equal(t, 1, c.Group)
	assert.Equal(t, 1, c.Sequence)
	assert.Equal(t, 1, c.Depth)
	assert.Equal(t, 0, c.ChildrenNum)
	assert.Nil(t, c.ParentID)
}

func TestCommentService_TopLevelOpensNextGroupWithoutMovingRows(t *testing.T) {
	f := newCommentFixture(t, nil)
	first := f.root(t, "one")
	reply := f.reply(t, first, "re")

	second := f.root(t, "two")

	assert.Equal(t, 2, second.Group)
	assert.Equal(t, 1, second.Sequence)
	assert.Equal(t, map[int64]int{first.ID: 1, reply.ID: 2}, f.positions(t, 1))
}

func TestCommentService_FirstReply(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")

	reply := f.reply(t, root, "reply")

	assert.Equal(t, 1, reply.Group)
	assert.Equal(t, 2, reply.Sequence)
	assert.Equal(t, 2, reply.Depth)
	assert.Equal(t, root.ID, *reply.ParentID)
	assert.Equal(t, 1, f.get(t, root.ID).ChildrenNum)
}

func TestCommentService_SecondReplyAtDeepestLevel(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")
	first := f.reply(t, root, "first")

	second := f.reply(t, root, "second")

	assert.Equal(t, 3, second.Sequence)
	assert.Equal(t, 2, second.Depth)
	assert.Equal(t, map[int64]int{root.ID: 1, first.ID: 2, second.ID: 3}, f.positions(t, 1))
	assert.Equal(t, 2, f.get(t, root.ID).ChildrenNum)
}

func TestCommentService_ReplyOpeningNewDepthShiftsFollowingRows(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")
	a := f.reply(t, root, "a")
	b := f.reply(t, root, "b")

	nested := f.reply(t, a, "a1")

	assert.Equal(t, 3, nested.Sequence)
	assert.Equal(t, 3, nested.Depth)
	assert.Equal(t, map[int64]int{root.ID: 1, a.ID: 2, nested.ID: 3, b.ID: 4}, f.positions(t, 1))
}

func TestCommentService_RootReplyBelowDeepestLevelAppends(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")
	a := f.reply(t, root, "a")
	a1 := f.reply(t, a, "a1")

	b := f.reply(t, root, "b")

	assert.Equal(t, 4, b.Sequence)
	assert.Equal(t, 2, b.Depth)
	assert.Equal(t, map[int64]int{root.ID: 1, a.ID: 2, a1.ID: 3, b.ID: 4}, f.positions(t, 1))
}

func TestCommentService_NestedReplyBelowDeepestLevelIsRefused(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")
	a := f.reply(t, root, "a")
	a1 := f.reply(t, a, "a1")
	f.reply(t, a1, "a1x")
	before := f.positions(t, 1)

	_, err := f.svc.CreateReply(context.Background(), f.postID, f.userID, "late", a.ID)

	assert.ErrorIs(t, err, thread.ErrOrderConflict)
	assert.Equal(t, before, f.positions(t, 1))
	assert.Equal(t, 1, f.get(t, a.ID).ChildrenNum)
}

func TestCommentService_ReplyValidation(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")
	otherPost := testutil.SeedPost(t, f.db, f.userID)
	ctx := context.Background()

	_, err := f.svc.CreateReply(ctx, f.postID, f.userID, "x", root.ID+99)
	assert.ErrorIs(t, err, model.ErrCommentNotFound)

	_, err = f.svc.CreateReply(ctx, otherPost, f.userID, "x", root.ID)
	assert.ErrorIs(t, err, model.ErrCommentNotFound)

	_, err = f.svc.CreateTopLevel(ctx, f.postID+99, f.userID, "x")
	assert.ErrorIs(t, err, model.ErrPostNotFound)

	_, err = f.svc.CreateTopLevel(ctx, f.postID, f.userID, "  <b></b> ")
	assert.ErrorIs(t, err, model.ErrContentRequired)

	long := make([]rune, model.MaxCommentLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.svc.CreateTopLevel(ctx, f.postID, f.userID, string(long))
	assert.ErrorIs(t, err, model.ErrContentTooLong)
}

func TestCommentService_CreateDispatchesOnParent(t *testing.T) {
	f := newCommentFixture(t, nil)
	ctx := context.Background()

	root, err := f.svc.Create(ctx, f.postID, f.userID, model.CreateCommentRequest{Content: "root"})
	require.NoError(t, err)
	assert.Equal(t, 1, root.Depth)

	reply, err := f.svc.Create(ctx, f.postID, f.userID, model.CreateCommentRequest{Content: "reply", ParentID: &root.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Depth)
}

func TestCommentService_ContentIsSanitised(t *testing.T) {
	f := newCommentFixture(t, nil)

	c := f.root(t, `hi <script>alert(1)</script><b>there</b>`)

	assert.Equal(t, "hi there", c.Content)

	c = f.root(t, "Tom & Jerry")
	assert.Equal(t, "Tom & Jerry", c.Content)

	_, err := f.svc.CreateTopLevel(context.Background(), f.postID, f.userID, strings.Repeat("&", model.MaxCommentLength))
	assert.NoError(t, err)
}

func TestCommentService_DeleteRemovesSubtreeAndCompacts(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")
	a := f.reply(t, root, "a")
	f.reply(t, a, "a1")
	b := f.reply(t, root, "b")
	require.Equal(t, 4, f.get(t, b.ID).Sequence)

	require.NoError(t, f.svc.Delete(context.Background(), f.postID, a.ID, f.userID))

	assert.Equal(t, map[int64]int{root.ID: 1, b.ID: 2}, f.positions(t, 1))
	assert.Equal(t, 1, f.get(t, root.ID).ChildrenNum)
}

func TestCommentService_DeleteRootEmptiesGroup(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")
	a := f.reply(t, root, "a")
	f.reply(t, a, "a1")
	other := f.root(t, "other")

	require.NoError(t, f.svc.Delete(context.Background(), f.postID, root.ID, f.userID))

	assert.Empty(t, f.positions(t, 1))
	assert.Equal(t, map[int64]int{other.ID: 1}, f.positions(t, 2))
}

func TestCommentService_DeleteDeepSubtree(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")
	a := f.reply(t, root, "a")
	a1 := f.reply(t, a, "a1")
	f.reply(t, a1, "a1x")
	b := f.reply(t, root, "b")

	require.NoError(t, f.svc.Delete(context.Background(), f.postID, a.ID, f.userID))

	assert.Equal(t, map[int64]int{root.ID: 1, b.ID: 2}, f.positions(t, 1))
}

func TestCommentService_DeleteAndUpdateAreOwnerOnly(t *testing.T) {
	f := newCommentFixture(t, nil)
	root := f.root(t, "root")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Delete(ctx, f.postID, root.ID, f.otherID), model.ErrCommentNotFound)
	assert.ErrorIs(t, f.svc.Update(ctx, f.postID, root.ID, f.otherID, "mine now"), model.ErrCommentNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.postID, root.ID+99, f.userID), model.ErrCommentNotFound)

	require.NoError(t, f.svc.Update(ctx, f.postID, root.ID, f.userID, "edited"))
	got := f.get(t, root.ID)
	assert.Equal(t, "edited", got.Content)
	assert.Equal(t, 1, got.Sequence)
}

func TestCommentService_List(t *testing.T) {
	f := newCommentFixture(t, nil)
	ctx := context.Background()
	root := f.root(t, "root")
	f.reply(t, root, "reply")
	second, err := f.svc.CreateTopLevel(ctx, f.postID, f.otherID, "second")
	require.NoError(t, err)

	viewer := f.userID
	page, err := f.svc.List(ctx, f.postID, model.NewPageRequest(1, 2), &viewer)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPage)
	require.Len(t, page.Items, 2)
	assert.Equal(t, root.ID, page.Items[0].ID)
	assert.True(t, page.Items[0].IsMyComment)
	assert.Equal(t, "ann", page.Items[0].User.Nickname)

	page, err = f.svc.List(ctx, f.postID, model.NewPageRequest(2, 2), &viewer)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, second.ID, page.Items[0].ID)
	assert.False(t, page.Items[0].IsMyComment)

	page, err = f.svc.List(ctx, f.postID, model.NewPageRequest(1, 10), nil)
	require.NoError(t, err)
	assert.False(t, page.Items[0].IsMyComment)
}

func TestCommentService_ListPageOutOfRange(t *testing.T) {
	f := newCommentFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.List(ctx, f.postID, model.NewPageRequest(1, 10), nil)
	assert.ErrorIs(t, err, model.ErrPageOutOfRange, "a thread with no comments has no pages")

	f.root(t, "only")
	page, err := f.svc.List(ctx, f.postID, model.NewPageRequest(1, 10), nil)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = f.svc.List(ctx, f.postID, model.NewPageRequest(2, 10), nil)
	assert.ErrorIs(t, err, model.ErrPageOutOfRange)

	_, err = f.svc.List(ctx, f.postID, model.NewPageRequest(math.MaxInt64/50, 100), nil)
	assert.ErrorIs(t, err, model.ErrPageOutOfRange)

	_, err = f.svc.List(ctx, f.postID+99, model.NewPageRequest(1, 10), nil)
	assert.ErrorIs(t, err, model.ErrPostNotFound)
}

// memPageCache is an in-process CommentPageCache with the same versioning.
type memPageCache struct {
	versions map[int64]int64
	pages    map[string]*cache.CommentPage
	lookups  int
	hits     int
}

func newMemPageCache() *memPageCache {
	return &memPageCache{versions: map[int64]int64{}, pages: map[string]*cache.CommentPage{}}
}

func memKey(postID, version int64, req model.PageRequest) string {
	return fmt.Sprintf("%d/%d/%d/%d", postID, version, req.PageNo, req.PageSize)
}

func (m *memPageCache) Lookup(ctx context.Context, postID int64, req model.PageRequest) (*cache.CommentPage, int64, error) {
	m.lookups++
	v := m.versions[postID]
	if p, ok := m.pages[memKey(postID, v, req)]; ok {
		m.hits++
		return p, v, nil
	}
	return nil, v, nil
}

func (m *memPageCache) Store(ctx context.Context, postID, version int64, req model.PageRequest, page *cache.CommentPage) error {
	m.pages[memKey(postID, version, req)] = page
	return nil
}

func (m *memPageCache) Invalidate(ctx context.Context, postID int64) error {
	m.versions[postID]++
	return nil
}

func TestCommentService_ListUsesPageCache(t *testing.T) {
	pc := newMemPageCache()
	f := newCommentFixture(t, pc)
	ctx := context.Background()
	root := f.root(t, "root")
	req := model.NewPageRequest(1, 10)

	_, err := f.svc.List(ctx, f.postID, req, nil)
	require.NoError(t, err)
	viewer := f.userID
	page, err := f.svc.List(ctx, f.postID, req, &viewer)
	require.NoError(t, err)
	assert.Equal(t, 1, pc.hits)
	assert.True(t, page.Items[0].IsMyComment)

	f.reply(t, root, "reply")
	page, err = f.svc.List(ctx, f.postID, req, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pc.hits)
	assert.Len(t, page.Items, 2)
}

type failingPageCache struct{}

func (failingPageCache) Lookup(context.Context, int64, model.PageRequest) (*cache.CommentPage, int64, error) {
	return nil, 0, errors.New("redis down")
}

func (failingPageCache) Store(context.Context, int64, int64, model.PageRequest, *cache.CommentPage) error {
	return errors.New("redis down")
}

func (failingPageCache) Invalidate(context.Context, int64) error {
	return errors.New("redis down")
}

func TestCommentService_CacheFailuresFallThrough(t *testing.T) {
	f := newCommentFixture(t, failingPageCache{})
	f.root(t, "root")

	page, err := f.svc.List(context.Background(), f.postID, model.NewPageRequest(1, 10), nil)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

// TestCommentService_RandomOperationsKeepGroupsOrdered drives creates and
// deletes at random and checks every group after each committed step.
func TestCommentService_RandomOperationsKeepGroupsOrdered(t *testing.T) {
	f := newCommentFixture(t, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 150; step++ {
		rows, err := f.repo.ListByPost(ctx, f.postID, 1000, 0)
		require.NoError(t, err)

		switch op := rng.Intn(10); {
		case len(rows) == 0 || op < 2:
			_, err = f.svc.CreateTopLevel(ctx, f.postID, f.userID, "root")
		case op < 8:
			parent := rows[rng.Intn(len(rows))]
			_, err = f.svc.CreateReply(ctx, f.postID, f.userID, "reply", parent.ID)
		default:
			target := rows[rng.Intn(len(rows))]
			err = f.svc.Delete(ctx, f.postID, target.ID, f.userID)
		}
		if errors.Is(err, thread.ErrOrderConflict) {
			continue
		}
		require.NoError(t, err, "step %d", step)

		groups := map[int]bool{}
		rows, err = f.repo.ListByPost(ctx, f.postID, 1000, 0)
		require.NoError(t, err)
		for _, r := range rows {
			groups[r.Group] = true
		}
		for g := range groups {
			f.positions(t, g)
		}
	}
}
