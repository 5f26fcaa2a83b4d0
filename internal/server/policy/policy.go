// Package policy decides whether a caller may view or write a repository
// partition. Each repository type maps to one predicate pair; ADMIN callers
// pass every check.
package policy

import (
	"context"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
)

// ClassVerifier answers whether a lecturer teaches a class.
type ClassVerifier interface {
	TeachesClass(ctx context.Context, token string, lecturerID, classID int64) (bool, error)
}

type predicate func(ctx context.Context, caller *models.Caller, contextID int64) error

type rules struct {
	view   predicate
	upload predicate
}

type Policy struct {
	classes ClassVerifier
	rules   map[models.RepositoryType]rules
}

func New(classes ClassVerifier) *Policy {
	p := &Policy{classes: classes}
	p.rules = map[models.RepositoryType]rules{
		models.RepositoryPersonal:   {view: ownerOnly, upload: ownerOnly},
		models.RepositoryClass:      {view: anyMember, upload: p.classTeacher},
		models.RepositoryDepartment: {view: departmentMember, upload: departmentMember},
	}
	return p
}

// ContextOf returns the partition key of item: the repository context id,
// or the owner id for PERSONAL items.
func ContextOf(item *models.Item) int64 {
	if item.RepositoryType == models.RepositoryPersonal || item.RepositoryContextID == nil {
		return item.OwnerID
	}
	return *item.RepositoryContextID
}

// CanView returns nil when caller may list or read the partition.
func (p *Policy) CanView(ctx context.Context, caller *models.Caller, t models.RepositoryType, contextID int64) error {
	r, err := p.lookup(caller, t)
	if err != nil || caller.User.IsAdmin() {
		return err
	}
	return r.view(ctx, caller, contextID)
}

// CanUpload returns nil when caller may create content in the partition.
func (p *Policy) CanUpload(ctx context.Context, caller *models.Caller, t models.RepositoryType, contextID int64) error {
	r, err := p.lookup(caller, t)
	if err != nil || caller.User.IsAdmin() {
		return err
	}
	return r.upload(ctx, caller, contextID)
}

func (p *Policy) lookup(caller *models.Caller, t models.RepositoryType) (rules, error) {
	if caller == nil || caller.User == nil {
		return rules{}, common.Errorf(common.ErrorUnauthorized, "no caller")
	}
	r, ok := p.rules[t]
	if !ok {
		return rules{}, common.Errorf(common.ErrorBadRequest, "unknown repository type %q", t)
	}
	return r, nil
}

func ownerOnly(_ context.Context, caller *models.Caller, ownerID int64) error {
	if caller.User.ID != ownerID {
		return common.Errorf(common.ErrorForbidden, "personal storage of another user")
	}
	return nil
}

// anyMember admits every authenticated caller. Class membership is not
// checked against the directory.
func anyMember(context.Context, *models.Caller, int64) error {
	return nil
}

func (p *Policy) classTeacher(ctx context.Context, caller *models.Caller, classID int64) error {
	if !caller.User.IsTeacher() {
		return common.Errorf(common.ErrorForbidden, "only lecturers of class %d may upload", classID)
	}
	ok, err := p.classes.TeachesClass(ctx, caller.Token, caller.User.ID, classID)
	if err != nil {
		return err
	}
	if !ok {
		return common.Errorf(common.ErrorForbidden, "you do not teach class %d", classID)
	}
	return nil
}

func departmentMember(_ context.Context, caller *models.Caller, departmentID int64) error {
	if caller.User.IsStudent() {
		return common.Errorf(common.ErrorForbidden, "students have no access to department storage")
	}
	if caller.DepartmentID == nil {
		return common.Errorf(common.ErrorBadRequest, "lecturer has no department on file")
	}
	if *caller.DepartmentID != departmentID {
		return common.Errorf(common.ErrorForbidden, "you do not belong to department %d", departmentID)
	}
	return nil
}
