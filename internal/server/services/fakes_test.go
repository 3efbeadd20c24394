package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/dbx"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/comments"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/likes"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/posts"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/scans"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/users"
	"github.com/google/uuid"
)

// --- repo manager ---

type fakeRepoManager struct {
	u users.Repository
	p *fakePostsRepo
	c *fakeCommentsRepo
	l *fakeLikesRepo
	s *fakeScansRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u: users.NewMemoryRepository(),
		p: &fakePostsRepo{rows: map[string]*models.Post{}},
		c: &fakeCommentsRepo{rows: map[string]*models.Comment{}},
		l: &fakeLikesRepo{rows: map[[2]string]bool{}},
		s: &fakeScansRepo{rows: map[string]*models.Scan{}},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) Posts(dbx.DBTX) posts.Repository             { return m.p }
func (m *fakeRepoManager) Comments(dbx.DBTX) comments.Repository       { return m.c }
func (m *fakeRepoManager) Likes(dbx.DBTX) likes.Repository             { return m.l }
func (m *fakeRepoManager) Scans(dbx.DBTX) scans.Repository             { return m.s }

// --- users: a store that is down ---

type brokenUsersRepo struct{ users.Repository }

var errStoreDown = fmt.Errorf("db error: %w", sql.ErrConnDone)

func (brokenUsersRepo) FindByUsernameOrEmail(context.Context, string) (*models.User, error) {
	return nil, errStoreDown
}
func (brokenUsersRepo) FindByID(context.Context, string) (*models.User, error) {
	return nil, errStoreDown
}
func (brokenUsersRepo) SetRefreshToken(context.Context, string, *string) error { return errStoreDown }

// --- posts ---

type fakePostsRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.Post
	deleteErr error
}

func (f *fakePostsRepo) Create(_ context.Context, p *models.Post) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now()
	c := *p
	f.rows[p.ID] = &c
	return p, nil
}

func (f *fakePostsRepo) FindByID(_ context.Context, id string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakePostsRepo) ListByUser(_ context.Context, userID string) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Post
	for _, p := range f.rows {
		if p.UserID == userID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakePostsRepo) UpdateDetails(_ context.Context, id, title, description string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p.Title, p.Description = title, description
	c := *p
	return &c, nil
}

func (f *fakePostsRepo) UpdateImage(_ context.Context, id, image string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p.Image = image
	c := *p
	return &c, nil
}

func (f *fakePostsRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	return nil
}

// --- comments ---

type fakeCommentsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Comment
}

func (f *fakeCommentsRepo) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.NewString()
	cp := *c
	f.rows[c.ID] = &cp
	return c, nil
}

func (f *fakeCommentsRepo) FindByID(_ context.Context, id string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCommentsRepo) ListByPost(_ context.Context, postID string) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Comment
	for _, c := range f.rows {
		if c.PostID == postID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCommentsRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeCommentsRepo) DeleteByPost(_ context.Context, postID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, c := range f.rows {
		if c.PostID == postID {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

// --- likes ---

type fakeLikesRepo struct {
	mu   sync.Mutex
	rows map[[2]string]bool
}

func (f *fakeLikesRepo) Toggle(_ context.Context, postID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]string{postID, userID}
	if f.rows[k] {
		delete(f.rows, k)
		return false, nil
	}
	f.rows[k] = true
	return true, nil
}

func (f *fakeLikesRepo) ListLikedPostIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.rows {
		if k[1] == userID {
			out = append(out, k[0])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeLikesRepo) CountByPost(_ context.Context, postID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.rows {
		if k[0] == postID {
			n++
		}
	}
	return n, nil
}

func (f *fakeLikesRepo) DeleteByPost(_ context.Context, postID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.rows {
		if k[0] == postID {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

// --- scans ---

type fakeScansRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Scan
}

func (f *fakeScansRepo) Create(_ context.Context, s *models.Scan) (*models.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = uuid.NewString()
	cp := *s
	f.rows[s.ID] = &cp
	return s, nil
}

func (f *fakeScansRepo) FindByID(_ context.Context, id string) (*models.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeScansRepo) ListByUser(_ context.Context, userID string) ([]*models.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Scan
	for _, s := range f.rows {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeScansRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	return nil
}

// --- image store ---

type fakeImages struct {
	mu   sync.Mutex
	puts int
	err  error
}

func (f *fakeImages) Put(_ context.Context, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.puts++
	return fmt.Sprintf("http://img.local/%d", f.puts), nil
}
