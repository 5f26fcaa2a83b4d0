package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/directory"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/policy"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/filemeta"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/items"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/shares"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/signing"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/users"
	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the relational schema. It enforces
// the same unique constraints and ON DELETE CASCADE rules as the migrations.
type memStore struct {
	mu       sync.Mutex
	clock    time.Time
	users    map[int64]models.User
	items    map[uuid.UUID]models.Item
	files    map[uuid.UUID]models.FileMetadata
	shares   []models.SharePermission
	requests map[uuid.UUID]models.SigningRequest
	shareSeq int64

	userCreates, userUpdates int
	fileCreateErr            error
}

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    map[int64]models.User{},
		items:    map[uuid.UUID]models.Item{},
		files:    map[uuid.UUID]models.FileMetadata{},
		requests: map[uuid.UUID]models.SigningRequest{},
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type memSnapshot struct {
	users    map[int64]models.User
	items    map[uuid.UUID]models.Item
	files    map[uuid.UUID]models.FileMetadata
	shares   []models.SharePermission
	requests map[uuid.UUID]models.SigningRequest
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		users:    copyMap(s.users),
		items:    copyMap(s.items),
		files:    copyMap(s.files),
		shares:   append([]models.SharePermission(nil), s.shares...),
		requests: copyMap(s.requests),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.items, s.files, s.shares, s.requests = snap.users, snap.items, snap.files, snap.shares, snap.requests
}

// useMemTx routes withTx through the store: the callback sees the store
// directly and its writes are undone when it fails.
func useMemTx(t *testing.T, st *memStore) {
	t.Helper()
	orig := withTx
	t.Cleanup(func() { withTx = orig })
	withTx = func(ctx context.Context, _ *sql.DB, _ *sql.TxOptions, fn func(context.Context, dbx.DBTX) error) error {
		snap := st.snapshot()
		if err := fn(ctx, nil); err != nil {
			st.restore(snap)
			return err
		}
		return nil
	}
}

func (s *memStore) countItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *memStore) itemOut(it models.Item) *models.Item {
	out := it
	if f, ok := s.files[it.ID]; ok {
		out.File = &f
	}
	return &out
}

func sortItems(list []*models.Item) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Type != list[j].Type {
			return list[i].Type < list[j].Type
		}
		return list[i].Name < list[j].Name
	})
}

func (s *memStore) filterItems(keep func(models.Item) bool) []*models.Item {
	out := []*models.Item{}
	for _, it := range s.items {
		if keep(it) {
			out = append(out, s.itemOut(it))
		}
	}
	sortItems(out)
	return out
}

func (s *memStore) sharedWith(itemID uuid.UUID, userID int64) bool {
	for _, sh := range s.shares {
		if sh.ItemID == itemID && sh.SharedWithUserID == userID {
			return true
		}
	}
	return false
}

// --- users ---

type memUsers struct{ *memStore }

func (r memUsers) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.users {
		if x.ID != u.ID && (x.Username == u.Username || x.Email == u.Email) {
			return common.Errorf(common.ErrorConflict, "user %q already registered", u.Username)
		}
	}
	ts := r.tick()
	u.CreatedAt, u.UpdatedAt = ts, ts
	if cur, ok := r.users[u.ID]; ok {
		u.CreatedAt = cur.CreatedAt
	}
	r.users[u.ID] = *u
	r.userCreates++
	return nil
}

func (r memUsers) Update(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return common.ErrorNotFound
	}
	u.UpdatedAt = r.tick()
	r.users[u.ID] = *u
	r.userUpdates++
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) List(ctx context.Context, skip, limit int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.User{}
	for _, u := range r.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if skip >= len(out) {
		return []*models.User{}, nil
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- items ---

type memItems struct{ *memStore }

func (r memItems) siblingTaken(it *models.Item) bool {
	for _, x := range r.items {
		if x.ID != it.ID && x.OwnerID == it.OwnerID && x.Name == it.Name && sameParent(x.ParentID, it.ParentID) {
			return true
		}
	}
	return false
}

func isRoot(it models.Item) bool {
	return it.IsSystemGenerated && it.ParentID == nil && it.RepositoryType != models.RepositoryPersonal
}

func (r memItems) Create(ctx context.Context, it *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.siblingTaken(it) {
		return common.Errorf(common.ErrorConflict, "an item named %q already exists in this folder", it.Name)
	}
	if isRoot(*it) {
		for _, x := range r.items {
			if isRoot(x) && x.RepositoryType == it.RepositoryType && *x.RepositoryContextID == *it.RepositoryContextID {
				return common.Errorf(common.ErrorConflict, "root exists")
			}
		}
	}
	if it.ParentID != nil {
		if _, ok := r.items[*it.ParentID]; !ok {
			return errors.New("db error: foreign key violation")
		}
	}
	it.CreatedAt = r.tick()
	it.UpdatedAt = it.CreatedAt
	stored := *it
	stored.File = nil
	r.items[it.ID] = stored
	return nil
}

func (r memItems) Update(ctx context.Context, it *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[it.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if r.siblingTaken(it) {
		return common.Errorf(common.ErrorConflict, "an item named %q already exists in this folder", it.Name)
	}
	cur.Name, cur.ParentID, cur.Trashed, cur.TrashedAt = it.Name, it.ParentID, it.Trashed, it.TrashedAt
	cur.Visibility, cur.ProcessStatus = it.Visibility, it.ProcessStatus
	cur.UpdatedAt = r.tick()
	it.UpdatedAt = cur.UpdatedAt
	r.items[it.ID] = cur
	return nil
}

func (r memItems) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return common.ErrorNotFound
	}
	r.cascade(id)
	return nil
}

func (r memItems) cascade(id uuid.UUID) {
	for _, x := range r.items {
		if x.ParentID != nil && *x.ParentID == id {
			r.cascade(x.ID)
		}
	}
	delete(r.items, id)
	delete(r.files, id)
	kept := r.shares[:0]
	for _, sh := range r.shares {
		if sh.ItemID != id {
			kept = append(kept, sh)
		}
	}
	r.shares = kept
	for rid, req := range r.requests {
		if req.ItemID == id {
			delete(r.requests, rid)
		}
	}
}

func (r memItems) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.itemOut(it), nil
}

func (r memItems) FindSibling(ctx context.Context, ownerID int64, parentID *uuid.UUID, name string) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.items {
		if x.OwnerID == ownerID && x.Name == name && sameParent(x.ParentID, parentID) {
			return r.itemOut(x), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memItems) GetRepositoryRoot(ctx context.Context, t models.RepositoryType, contextID int64) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.items {
		if isRoot(x) && x.RepositoryType == t && *x.RepositoryContextID == contextID {
			return r.itemOut(x), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memItems) ListChildren(ctx context.Context, f items.ChildFilter) ([]*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterItems(func(x models.Item) bool {
		return !x.Trashed && sameParent(x.ParentID, f.ParentID) && x.RepositoryType == f.RepositoryType &&
			(f.OwnerID == nil || x.OwnerID == *f.OwnerID) &&
			(f.ContextID == nil || (x.RepositoryContextID != nil && *x.RepositoryContextID == *f.ContextID))
	}), nil
}

func (r memItems) ListAllChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterItems(func(x models.Item) bool {
		return x.ParentID != nil && *x.ParentID == parentID
	}), nil
}

func (r memItems) ListTrashed(ctx context.Context, ownerID int64) ([]*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filterItems(func(x models.Item) bool { return x.Trashed && x.OwnerID == ownerID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].TrashedAt.After(*out[j].TrashedAt) })
	return out, nil
}

func (r memItems) ListSharedWith(ctx context.Context, userID int64) ([]*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterItems(func(x models.Item) bool { return !x.Trashed && r.sharedWith(x.ID, userID) }), nil
}

func (r memItems) Search(ctx context.Context, userID int64, f items.SearchFilter) ([]*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filterItems(func(x models.Item) bool {
		if x.Trashed || (x.OwnerID != userID && !r.sharedWith(x.ID, userID)) {
			return false
		}
		if f.Name != "" && !strings.Contains(strings.ToLower(x.Name), strings.ToLower(f.Name)) {
			return false
		}
		if f.Type != "" && x.Type != f.Type {
			return false
		}
		if f.MimeType != "" {
			meta, ok := r.files[x.ID]
			return ok && meta.MimeType == f.MimeType
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memItems) ListByOwner(ctx context.Context, ownerID int64, includeTrashed bool) ([]*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterItems(func(x models.Item) bool { return x.OwnerID == ownerID && (includeTrashed || !x.Trashed) }), nil
}

func (r memItems) List(ctx context.Context, skip, limit int) ([]*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filterItems(func(models.Item) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if skip >= len(out) {
		return []*models.Item{}, nil
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- file metadata ---

type memFiles struct{ *memStore }

func (r memFiles) Create(ctx context.Context, m *models.FileMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fileCreateErr != nil {
		return r.fileCreateErr
	}
	if _, ok := r.items[m.ItemID]; !ok {
		return errors.New("db error: foreign key violation")
	}
	for _, f := range r.files {
		if f.StoragePath == m.StoragePath {
			return common.Errorf(common.ErrorConflict, "storage path %q is already in use", m.StoragePath)
		}
	}
	if m.Version == 0 {
		m.Version = 1
	}
	r.files[m.ItemID] = *m
	return nil
}

func (r memFiles) GetByItemID(ctx context.Context, itemID uuid.UUID) (*models.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[itemID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &f, nil
}

// --- shares ---

type memShares struct{ *memStore }

func (r memShares) Create(ctx context.Context, sh *models.SharePermission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sharedWith(sh.ItemID, sh.SharedWithUserID) {
		return common.Errorf(common.ErrorConflict, "item is already shared with this user")
	}
	r.shareSeq++
	sh.ID, sh.CreatedAt = r.shareSeq, r.tick()
	r.shares = append(r.shares, *sh)
	return nil
}

func (r memShares) Delete(ctx context.Context, itemID uuid.UUID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sh := range r.shares {
		if sh.ItemID == itemID && sh.SharedWithUserID == userID {
			r.shares = append(r.shares[:i:i], r.shares[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r memShares) Exists(ctx context.Context, itemID uuid.UUID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sharedWith(itemID, userID), nil
}

func (r memShares) CountForItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	list, _ := r.ListForItem(ctx, itemID)
	return len(list), nil
}

func (r memShares) ListForItem(ctx context.Context, itemID uuid.UUID) ([]*models.SharePermission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.SharePermission{}
	for _, sh := range r.shares {
		sh := sh
		if sh.ItemID == itemID {
			out = append(out, &sh)
		}
	}
	return out, nil
}

// --- signing requests ---

type memRequests struct{ *memStore }

func (r memRequests) Create(ctx context.Context, req *models.SigningRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.requests {
		if x.ItemID == req.ItemID && x.Status.Open() {
			return common.Errorf(common.ErrorConflict, "an open signing request already exists for this file")
		}
	}
	req.CreatedAt = r.tick()
	req.UpdatedAt = req.CreatedAt
	r.requests[req.ID] = *req
	return nil
}

func (r memRequests) detailed(req models.SigningRequest) *models.SigningRequest {
	req.FileName = r.items[req.ItemID].Name
	if u, ok := r.users[req.RequesterID]; ok {
		req.RequesterName = u.FullName
		if req.RequesterName == "" {
			req.RequesterName = u.Username
		}
	}
	if req.ApproverID != nil {
		if u, ok := r.users[*req.ApproverID]; ok {
			name := u.FullName
			req.ApproverName = &name
		}
	}
	return &req
}

func (r memRequests) GetByID(ctx context.Context, id uuid.UUID) (*models.SigningRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.detailed(req), nil
}

func (r memRequests) LockByID(ctx context.Context, id uuid.UUID) (*models.SigningRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &req, nil
}

func (r memRequests) Update(ctx context.Context, req *models.SigningRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.ID]; !ok {
		return common.ErrorNotFound
	}
	req.UpdatedAt = r.tick()
	r.requests[req.ID] = *req
	return nil
}

func (r memRequests) HasOpenForItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.requests {
		if x.ItemID == itemID && x.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (r memRequests) list(keep func(models.SigningRequest) bool, newestFirst bool) []*models.SigningRequest {
	out := []*models.SigningRequest{}
	for _, x := range r.requests {
		if keep(x) {
			out = append(out, r.detailed(x))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r memRequests) ListByRequester(ctx context.Context, requesterID int64) ([]*models.SigningRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(x models.SigningRequest) bool { return x.RequesterID == requesterID }, true), nil
}

func (r memRequests) ListByStatus(ctx context.Context, status models.SigningStatus) ([]*models.SigningRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(x models.SigningRequest) bool { return x.Status == status }, false), nil
}

// --- repository manager ---

type fakeRepoManager struct {
	repomanager.RepositoryManager
	st *memStore
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return memUsers{m.st} }
func (m *fakeRepoManager) Items(dbx.DBTX) items.Repository              { return memItems{m.st} }
func (m *fakeRepoManager) FileMetadata(dbx.DBTX) filemeta.Repository    { return memFiles{m.st} }
func (m *fakeRepoManager) Shares(dbx.DBTX) shares.Repository            { return memShares{m.st} }
func (m *fakeRepoManager) SigningRequests(dbx.DBTX) signing.Repository  { return memRequests{m.st} }

// --- blob storage ---

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	deleted   []string
	putErr    error
	deleteErr map[string]error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, types: map[string]string{}, deleteErr: map[string]error{}}
}

func (b *fakeBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(data), size)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *fakeBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.deleteErr[key]; err != nil {
		return err
	}
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// --- directory ---

type fakeDirectory struct {
	mu          sync.Mutex
	courses     map[int64][]models.Course
	courseErr   map[int64]error
	filters     []directory.CourseFilter
	classes     map[int64][]models.Class
	classesErr  error
	students    map[int64][]models.Student
	studentsErr error
	departments map[int64]models.Department
	depErr      error
	bulk        [][]models.Notification
	bulkErr     error
	sent        []models.Notification
	notifyErr   error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		courses:     map[int64][]models.Course{},
		courseErr:   map[int64]error{},
		classes:     map[int64][]models.Class{},
		students:    map[int64][]models.Student{},
		departments: map[int64]models.Department{},
	}
}

func (d *fakeDirectory) ListCourses(ctx context.Context, token string, f directory.CourseFilter) ([]models.Course, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filters = append(d.filters, f)
	if err := d.courseErr[*f.SemesterID]; err != nil {
		return nil, err
	}
	return d.courses[*f.SemesterID], nil
}

func (d *fakeDirectory) LecturerClasses(ctx context.Context, token string, lecturerID int64) ([]models.Class, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classes[lecturerID], d.classesErr
}

func (d *fakeDirectory) TeachesClass(ctx context.Context, token string, lecturerID, classID int64) (bool, error) {
	classes, err := d.LecturerClasses(ctx, token, lecturerID)
	if err != nil {
		return false, err
	}
	for _, c := range classes {
		if c.ID == classID {
			return true, nil
		}
	}
	return false, nil
}

func (d *fakeDirectory) GetDepartment(ctx context.Context, token string, id int64) (*models.Department, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.depErr != nil {
		return nil, d.depErr
	}
	dep, ok := d.departments[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &dep, nil
}

func (d *fakeDirectory) ClassStudents(ctx context.Context, token string, classID int64) ([]models.Student, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.students[classID], d.studentsErr
}

func (d *fakeDirectory) NotifyBulk(ctx context.Context, token string, ns []models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bulk = append(d.bulk, ns)
	return d.bulkErr
}

func (d *fakeDirectory) Notify(ctx context.Context, token string, n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return d.notifyErr
}

// --- callers ---

func ptr[T any](v T) *T { return &v }

// addUser stores a user and returns a caller for it.
func (s *memStore) addUser(id int64, username string, role models.Role, dept *int64) *models.Caller {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := models.User{ID: id, Username: username, Email: username + "@uni.edu", FullName: strings.ToUpper(username[:1]) + username[1:], Role: role}
	s.users[id] = u
	return &models.Caller{User: &u, DepartmentID: dept, Token: "tok-" + username}
}

// --- wiring ---

type testEnv struct {
	st      *memStore
	blobs   *fakeBlobs
	dir     *fakeDirectory
	drive   *DriveService
	sharing *SharingService
	storage *StorageService
	signing *SigningService
	admin   *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newMemStore()
	useMemTx(t, st)

	rm := &fakeRepoManager{st: st}
	blobs := newFakeBlobs()
	dir := newFakeDirectory()
	pol := policy.New(dir)
	log := logging.Nop{}

	return &testEnv{
		st:      st,
		blobs:   blobs,
		dir:     dir,
		drive:   NewDriveService(nil, rm, blobs, pol, log),
		sharing: NewSharingService(nil, rm, log),
		storage: NewStorageService(nil, rm, blobs, pol, dir, 4, log),
		signing: NewSigningService(nil, rm, dir, log),
		admin:   NewAdminService(nil, rm, blobs, log),
	}
}
