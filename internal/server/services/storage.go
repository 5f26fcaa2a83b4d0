package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/hpcdrive/internal/server/directory"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/items"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	notifyFileUpload = "FILE_UPLOAD"
	priorityNormal   = "NORMAL"
)

// RepositoryPolicy gates repository-scoped operations.
type RepositoryPolicy interface {
	ViewPolicy
	CanUpload(ctx context.Context, caller *models.Caller, t models.RepositoryType, contextID int64) error
}

// Directory is the subset of the system-management client StorageService
// needs.
type Directory interface {
	ListCourses(ctx context.Context, token string, f directory.CourseFilter) ([]models.Course, error)
	LecturerClasses(ctx context.Context, token string, lecturerID int64) ([]models.Class, error)
	GetDepartment(ctx context.Context, token string, id int64) (*models.Department, error)
	ClassStudents(ctx context.Context, token string, classID int64) ([]models.Student, error)
	NotifyBulk(ctx context.Context, token string, ns []models.Notification) error
}

// GeneratedFolder is one folder created by AutoGenerate.
type GeneratedFolder struct {
	Item *models.Item
	Path string
}

// GenerationSummary lists everything AutoGenerate created, in creation
// order. SkippedSemesters holds the semesters whose course listing failed.
type GenerationSummary struct {
	Root             *models.Item
	Folders          []GeneratedFolder
	SkippedSemesters []int
}

// RootName is the deterministic name of a repository's root folder.
func RootName(t models.RepositoryType, contextID int64) string {
	switch t {
	case models.RepositoryClass:
		return fmt.Sprintf("Class_%d_Root", contextID)
	case models.RepositoryDepartment:
		return fmt.Sprintf("Department_%d_Root", contextID)
	}
	return ""
}

func infoFolderName(t models.RepositoryType) string {
	if t == models.RepositoryClass {
		return "Class Information"
	}
	return "Department Information"
}

// StorageService serves the class and department repositories.
type StorageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	policy      RepositoryPolicy
	directory   Directory
	semesters   int
	log         logging.Logger
}

func NewStorageService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store, p RepositoryPolicy,
	dir Directory, semesters int, log logging.Logger) *StorageService {
	return &StorageService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		policy:      p,
		directory:   dir,
		semesters:   semesters,
		log:         log.With("module", "storage"),
	}
}

func checkShared(caller *models.Caller, t models.RepositoryType) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if t != models.RepositoryClass && t != models.RepositoryDepartment {
		return common.Errorf(common.ErrorBadRequest, "repository type must be CLASS or DEPARTMENT, got %q", t)
	}
	return nil
}

type semesterCourses struct {
	number  int
	courses []models.Course
}

// AutoGenerate creates the folder skeleton of a repository: root,
// information folder, semester folders and one folder per course. It fails
// with Conflict when the root already exists. A semester whose course list
// cannot be fetched is skipped.
func (s *StorageService) AutoGenerate(ctx context.Context, caller *models.Caller, t models.RepositoryType, contextID int64) (*GenerationSummary, error) {
	if err := checkShared(caller, t); err != nil {
		return nil, err
	}
	if err := s.policy.CanUpload(ctx, caller, t, contextID); err != nil {
		return nil, err
	}

	if _, err := s.repomanager.Items(s.db).GetRepositoryRoot(ctx, t, contextID); err == nil {
		return nil, common.Errorf(common.ErrorConflict, "%s already exists", RootName(t, contextID))
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	summary := &GenerationSummary{}
	plan := s.fetchCourses(ctx, caller, t, contextID, summary)

	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		if _, err := repo.GetRepositoryRoot(ctx, t, contextID); err == nil {
			return common.Errorf(common.ErrorConflict, "%s already exists", RootName(t, contextID))
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		mk := func(name, path string, parent *models.Item, locked bool) (*models.Item, error) {
			var pid *uuid.UUID
			if parent != nil {
				pid = &parent.ID
			}
			it := newItem(caller.User, name, models.ItemTypeFolder, pid)
			it.RepositoryType = t
			it.RepositoryContextID = &contextID
			it.IsSystemGenerated = true
			it.IsLocked = locked
			if err := repo.Create(ctx, it); err != nil {
				return nil, err
			}
			summary.Folders = append(summary.Folders, GeneratedFolder{Item: it, Path: path})
			return it, nil
		}

		root, err := mk(RootName(t, contextID), "/", nil, true)
		if err != nil {
			return err
		}
		summary.Root = root

		info := infoFolderName(t)
		if _, err := mk(info, "/"+info, root, true); err != nil {
			return err
		}

		for _, sem := range plan {
			name := fmt.Sprintf("Semester %d", sem.number)
			folder, err := mk(name, "/"+name, root, true)
			if err != nil {
				return err
			}
			seen := map[string]bool{}
			for _, c := range sem.courses {
				if c.Name == "" || seen[c.Name] || validateName(c.Name) != nil {
					continue
				}
				seen[c.Name] = true
				if _, err := mk(c.Name, "/"+name+"/"+c.Name, folder, false); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "repository generated", "type", t, "context_id", contextID,
		"folders", len(summary.Folders), "skipped_semesters", len(summary.SkippedSemesters))
	return summary, nil
}

func (s *StorageService) fetchCourses(ctx context.Context, caller *models.Caller, t models.RepositoryType, contextID int64, summary *GenerationSummary) []semesterCourses {
	plan := make([]semesterCourses, 0, s.semesters)
	for n := 1; n <= s.semesters; n++ {
		semesterID := int64(n)
		f := directory.CourseFilter{SemesterID: &semesterID}
		if t == models.RepositoryDepartment {
			f.DepartmentID = &contextID
		}
		courses, err := s.directory.ListCourses(ctx, caller.Token, f)
		if err != nil {
			s.log.Warn(ctx, "course listing failed, semester left empty", "semester", n, "error", err)
			summary.SkippedSemesters = append(summary.SkippedSemesters, n)
		}
		plan = append(plan, semesterCourses{number: n, courses: courses})
	}
	return plan
}

// repositoryFolder resolves parentID inside the repository; nil means the
// root.
func repositoryFolder(ctx context.Context, repo items.Repository, t models.RepositoryType, contextID int64, parentID *uuid.UUID) (*models.Item, error) {
	if parentID == nil {
		root, err := repo.GetRepositoryRoot(ctx, t, contextID)
		if err != nil {
			return nil, notFound(err, "%s has not been generated", RootName(t, contextID))
		}
		return root, nil
	}

	p, err := repo.GetByID(ctx, *parentID)
	if err != nil {
		return nil, notFound(err, "folder %s not found", *parentID)
	}
	if p.Trashed || !p.InRepository(t, &contextID) {
		return nil, common.Errorf(common.ErrorNotFound, "folder %s not found in %s", *parentID, RootName(t, contextID))
	}
	if !p.IsFolder() {
		return nil, common.Errorf(common.ErrorBadRequest, "parent %s is not a folder", *parentID)
	}
	return p, nil
}

// ListRepository returns the non-trashed children of parentID, or of the root
// when parentID is nil. A repository that was never generated is empty.
func (s *StorageService) ListRepository(ctx context.Context, caller *models.Caller, t models.RepositoryType, contextID int64, parentID *uuid.UUID) ([]*models.Item, error) {
	if err := checkShared(caller, t); err != nil {
		return nil, err
	}
	if err := s.policy.CanView(ctx, caller, t, contextID); err != nil {
		return nil, err
	}

	repo := s.repomanager.Items(s.db)
	parent, err := repositoryFolder(ctx, repo, t, contextID, parentID)
	if err != nil {
		if parentID == nil && errors.Is(err, common.ErrorNotFound) {
			return []*models.Item{}, nil
		}
		return nil, err
	}
	return repo.ListChildren(ctx, items.ChildFilter{
		ParentID:       &parent.ID,
		RepositoryType: t,
		ContextID:      &contextID,
	})
}

func (s *StorageService) CreateRepositoryFolder(ctx context.Context, caller *models.Caller, t models.RepositoryType, contextID int64,
	parentID *uuid.UUID, name string) (*models.Item, error) {
	if err := checkShared(caller, t); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := s.policy.CanUpload(ctx, caller, t, contextID); err != nil {
		return nil, err
	}

	var item *models.Item
	err := withTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Items(tx)
		parent, err := repositoryFolder(ctx, repo, t, contextID, parentID)
		if err != nil {
			return err
		}
		if err := checkSibling(ctx, repo, caller.User.ID, &parent.ID, name, nil); err != nil {
			return err
		}
		item = newItem(caller.User, name, models.ItemTypeFolder, &parent.ID)
		item.RepositoryType = t
		item.RepositoryContextID = &contextID
		return repo.Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UploadToRepository stores a file in a class or department repository.
// Class uploads notify the class's students once the file is committed.
func (s *StorageService) UploadToRepository(ctx context.Context, caller *models.Caller, t models.RepositoryType, contextID int64, in UploadInput) (*models.Item, error) {
	if err := checkShared(caller, t); err != nil {
		return nil, err
	}
	if err := s.policy.CanUpload(ctx, caller, t, contextID); err != nil {
		return nil, err
	}

	item, err := storeFile(ctx, s.db, s.repomanager, s.blobs, s.log, caller, in, placement{
		repoType:  t,
		contextID: &contextID,
		parent: func(ctx context.Context, repo items.Repository) (*uuid.UUID, error) {
			p, err := repositoryFolder(ctx, repo, t, contextID, in.ParentID)
			if err != nil {
				return nil, err
			}
			return &p.ID, nil
		},
	})
	if err != nil {
		return nil, err
	}

	if t == models.RepositoryClass {
		s.notifyClass(ctx, caller, contextID, item)
	}
	return item, nil
}

func (s *StorageService) notifyClass(ctx context.Context, caller *models.Caller, classID int64, item *models.Item) {
	students, err := s.directory.ClassStudents(ctx, caller.Token, classID)
	if err != nil {
		s.log.Warn(ctx, "class roster unavailable, upload not announced", "class_id", classID, "error", err)
		return
	}

	ns := make([]models.Notification, 0, len(students))
	for _, st := range students {
		ns = append(ns, models.Notification{
			RecipientID: st.ID,
			Title:       "New file in class storage",
			Message:     fmt.Sprintf("%s uploaded %q", caller.User.FullName, item.Name),
			Type:        notifyFileUpload,
			Priority:    priorityNormal,
			Metadata: map[string]any{
				"item_id":  item.ID.String(),
				"class_id": classID,
			},
		})
	}
	if err := s.directory.NotifyBulk(ctx, caller.Token, ns); err != nil {
		s.log.Warn(ctx, "upload notification failed", "class_id", classID, "recipients", len(ns), "error", err)
	}
}

// MyClasses lists the classes the calling lecturer teaches. Students and
// admins teach none.
func (s *StorageService) MyClasses(ctx context.Context, caller *models.Caller) ([]models.Class, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !caller.User.IsTeacher() {
		return []models.Class{}, nil
	}
	return s.directory.LecturerClasses(ctx, caller.Token, caller.User.ID)
}

// MyDepartment returns the calling lecturer's department. When the directory
// cannot name it, a placeholder name is used.
func (s *StorageService) MyDepartment(ctx context.Context, caller *models.Caller) (*models.Department, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if caller.User.IsStudent() {
		return nil, common.Errorf(common.ErrorForbidden, "students have no department storage")
	}
	if caller.DepartmentID == nil {
		return nil, common.Errorf(common.ErrorBadRequest, "no department on file")
	}

	id := *caller.DepartmentID
	dep, err := s.directory.GetDepartment(ctx, caller.Token, id)
	if err != nil {
		s.log.Warn(ctx, "department lookup failed", "department_id", id, "error", err)
		return &models.Department{ID: id, Name: fmt.Sprintf("Department %d", id)}, nil
	}
	return dep, nil
}
