package grpc

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/services"
)

var methods = map[string]handlerFunc{
	"Me": bind(me),

	// personal drive
	"CreateFolder":    bind(createFolder),
	"ListChildren":    bind(listChildren),
	"GetItem":         bind(getItem),
	"GetFileMetadata": bind(getFileMetadata),
	"UpdateItem":      bind(updateItem),
	"TrashItem":       bind(trashItem),
	"RestoreItem":     bind(restoreItem),
	"ListTrash":       bind(listTrash),
	"PurgeItem":       bind(purgeItem),
	"EmptyTrash":      bind(emptyTrash),
	"UploadFile":      bind(uploadFile),

	// sharing
	"ShareItem":        bind(shareItem),
	"UnshareItem":      bind(unshareItem),
	"ListGrants":       bind(listGrants),
	"ListSharedWithMe": bind(listSharedWithMe),
	"Search":           bind(search),

	// class and department repositories
	"GenerateRepository":     bind(generateRepository),
	"ListRepository":         bind(listRepository),
	"CreateRepositoryFolder": bind(createRepositoryFolder),
	"UploadToRepository":     bind(uploadToRepository),
	"MyClasses":              bind(myClasses),
	"MyDepartment":           bind(myDepartment),

	// signing
	"CreateSigningRequest":       bind(createSigningRequest),
	"SubmitSigningRequest":       bind(submitSigningRequest),
	"ApproveSigningRequest":      bind(approveSigningRequest),
	"RejectSigningRequest":       bind(rejectSigningRequest),
	"GetSigningRequest":          bind(getSigningRequest),
	"ListMySigningRequests":      bind(listMySigningRequests),
	"ListPendingSigningRequests": bind(listPendingSigningRequests),

	// administration
	"AdminListUsers":     bind(adminListUsers),
	"AdminGetUser":       bind(adminGetUser),
	"AdminListUserItems": bind(adminListUserItems),
	"AdminListItems":     bind(adminListItems),
	"AdminGetItem":       bind(adminGetItem),
	"AdminPurgeItem":     bind(adminPurgeItem),
}

// MethodNames lists the DriveService methods in lexical order.
func MethodNames() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func itemOrErr(it *models.Item, err error) (itemDTO, error) {
	if err != nil {
		return itemDTO{}, err
	}
	return toItem(it), nil
}

func itemsOrErr(items []*models.Item, err error) (list[itemDTO], error) {
	if err != nil {
		return list[itemDTO]{}, err
	}
	return listOf(items, toItem), nil
}

func signingOrErr(r *models.SigningRequest, err error) (signingDTO, error) {
	if err != nil {
		return signingDTO{}, err
	}
	return toSigning(r), nil
}

func signingsOrErr(rs []*models.SigningRequest, err error) (list[signingDTO], error) {
	if err != nil {
		return list[signingDTO]{}, err
	}
	return listOf(rs, toSigning), nil
}

func removedOrErr(n int, err error) (removedResponse, error) {
	if err != nil {
		return removedResponse{}, err
	}
	return removedResponse{Removed: n}, nil
}

func me(_ context.Context, _ *GRPCServer, c *models.Caller, _ *empty) (userDTO, error) {
	if c == nil || c.User == nil {
		return userDTO{}, common.Errorf(common.ErrorUnauthorized, "not authenticated")
	}
	return toUser(c.User), nil
}

func createFolder(ctx context.Context, s *GRPCServer, c *models.Caller, req *createFolderRequest) (itemDTO, error) {
	return itemOrErr(s.svc.Drive.CreateFolder(ctx, c, req.Name, req.ParentID))
}

func listChildren(ctx context.Context, s *GRPCServer, c *models.Caller, req *parentRequest) (list[itemDTO], error) {
	return itemsOrErr(s.svc.Drive.ListChildren(ctx, c, req.ParentID))
}

func getItem(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (itemDTO, error) {
	return itemOrErr(s.svc.Drive.GetItem(ctx, c, req.ID))
}

func getFileMetadata(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (fileDTO, error) {
	m, err := s.svc.Drive.GetFileMetadata(ctx, c, req.ID)
	if err != nil {
		return fileDTO{}, err
	}
	return *toFile(m), nil
}

func updateItem(ctx context.Context, s *GRPCServer, c *models.Caller, req *updateItemRequest) (itemDTO, error) {
	return itemOrErr(s.svc.Drive.Update(ctx, c, req.ID, services.UpdateInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		ToRoot:   req.ToRoot,
	}))
}

func trashItem(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (itemDTO, error) {
	return itemOrErr(s.svc.Drive.Trash(ctx, c, req.ID))
}

func restoreItem(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (itemDTO, error) {
	return itemOrErr(s.svc.Drive.Restore(ctx, c, req.ID))
}

func listTrash(ctx context.Context, s *GRPCServer, c *models.Caller, _ *empty) (list[itemDTO], error) {
	return itemsOrErr(s.svc.Drive.ListTrash(ctx, c))
}

func purgeItem(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (removedResponse, error) {
	return removedOrErr(s.svc.Drive.Purge(ctx, c, req.ID))
}

func emptyTrash(ctx context.Context, s *GRPCServer, c *models.Caller, _ *empty) (removedResponse, error) {
	return removedOrErr(s.svc.Drive.EmptyTrash(ctx, c))
}

func uploadFile(ctx context.Context, s *GRPCServer, c *models.Caller, req *uploadRequest) (itemDTO, error) {
	return itemOrErr(s.svc.Drive.Upload(ctx, c, req.input()))
}

func shareItem(ctx context.Context, s *GRPCServer, c *models.Caller, req *shareRequest) (shareDTO, error) {
	p, err := s.svc.Sharing.Share(ctx, c, req.ID, req.Username)
	if err != nil {
		return shareDTO{}, err
	}
	return toShare(p), nil
}

func unshareItem(ctx context.Context, s *GRPCServer, c *models.Caller, req *shareRequest) (empty, error) {
	return empty{}, s.svc.Sharing.Unshare(ctx, c, req.ID, req.Username)
}

func listGrants(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (list[shareDTO], error) {
	grants, err := s.svc.Sharing.ListGrants(ctx, c, req.ID)
	if err != nil {
		return list[shareDTO]{}, err
	}
	return listOf(grants, toShare), nil
}

func listSharedWithMe(ctx context.Context, s *GRPCServer, c *models.Caller, _ *empty) (list[itemDTO], error) {
	return itemsOrErr(s.svc.Sharing.ListSharedWithMe(ctx, c))
}

func search(ctx context.Context, s *GRPCServer, c *models.Caller, req *searchRequest) (list[itemDTO], error) {
	return itemsOrErr(s.svc.Sharing.Search(ctx, c, services.SearchFilter{
		Name:     req.Name,
		Type:     req.Type,
		MimeType: req.MimeType,
	}))
}

func generateRepository(ctx context.Context, s *GRPCServer, c *models.Caller, req *repositoryRequest) (generationDTO, error) {
	g, err := s.svc.Storage.AutoGenerate(ctx, c, req.Type, req.ContextID)
	if err != nil {
		return generationDTO{}, err
	}
	return toGeneration(g), nil
}

func listRepository(ctx context.Context, s *GRPCServer, c *models.Caller, req *repositoryRequest) (list[itemDTO], error) {
	return itemsOrErr(s.svc.Storage.ListRepository(ctx, c, req.Type, req.ContextID, req.ParentID))
}

func createRepositoryFolder(ctx context.Context, s *GRPCServer, c *models.Caller, req *repositoryFolderRequest) (itemDTO, error) {
	return itemOrErr(s.svc.Storage.CreateRepositoryFolder(ctx, c, req.Type, req.ContextID, req.ParentID, req.Name))
}

func uploadToRepository(ctx context.Context, s *GRPCServer, c *models.Caller, req *repositoryUploadRequest) (itemDTO, error) {
	return itemOrErr(s.svc.Storage.UploadToRepository(ctx, c, req.Type, req.ContextID, req.input()))
}

func myClasses(ctx context.Context, s *GRPCServer, c *models.Caller, _ *empty) (list[unitDTO], error) {
	classes, err := s.svc.Storage.MyClasses(ctx, c)
	if err != nil {
		return list[unitDTO]{}, err
	}
	return listOf(classes, toClass), nil
}

func myDepartment(ctx context.Context, s *GRPCServer, c *models.Caller, _ *empty) (unitDTO, error) {
	d, err := s.svc.Storage.MyDepartment(ctx, c)
	if err != nil {
		return unitDTO{}, err
	}
	return unitDTO{ID: d.ID, Name: d.Name, Code: d.Code}, nil
}

func createSigningRequest(ctx context.Context, s *GRPCServer, c *models.Caller, req *signingCreateRequest) (signingDTO, error) {
	return signingOrErr(s.svc.Signing.Create(ctx, c, req.ItemID, req.ApproverID))
}

func submitSigningRequest(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (signingDTO, error) {
	return signingOrErr(s.svc.Signing.Submit(ctx, c, req.ID))
}

func approveSigningRequest(ctx context.Context, s *GRPCServer, c *models.Caller, req *decisionRequest) (signingDTO, error) {
	return signingOrErr(s.svc.Signing.Approve(ctx, c, req.ID, req.Comment))
}

func rejectSigningRequest(ctx context.Context, s *GRPCServer, c *models.Caller, req *decisionRequest) (signingDTO, error) {
	return signingOrErr(s.svc.Signing.Reject(ctx, c, req.ID, req.Comment))
}

func getSigningRequest(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (signingDTO, error) {
	return signingOrErr(s.svc.Signing.Get(ctx, c, req.ID))
}

func listMySigningRequests(ctx context.Context, s *GRPCServer, c *models.Caller, _ *empty) (list[signingDTO], error) {
	return signingsOrErr(s.svc.Signing.ListMine(ctx, c))
}

func listPendingSigningRequests(ctx context.Context, s *GRPCServer, c *models.Caller, _ *empty) (list[signingDTO], error) {
	return signingsOrErr(s.svc.Signing.ListPending(ctx, c))
}

func adminListUsers(ctx context.Context, s *GRPCServer, c *models.Caller, req *pageRequest) (list[userDTO], error) {
	users, err := s.svc.Admin.ListUsers(ctx, c, req.page())
	if err != nil {
		return list[userDTO]{}, err
	}
	return listOf(users, toUser), nil
}

func adminGetUser(ctx context.Context, s *GRPCServer, c *models.Caller, req *userRequest) (userDTO, error) {
	u, err := s.svc.Admin.GetUser(ctx, c, req.UserID)
	if err != nil {
		return userDTO{}, err
	}
	return toUser(u), nil
}

func adminListUserItems(ctx context.Context, s *GRPCServer, c *models.Caller, req *userItemsRequest) (list[itemDTO], error) {
	return itemsOrErr(s.svc.Admin.ListUserItems(ctx, c, req.UserID, req.IncludeTrashed))
}

func adminListItems(ctx context.Context, s *GRPCServer, c *models.Caller, req *pageRequest) (list[itemDTO], error) {
	return itemsOrErr(s.svc.Admin.ListItems(ctx, c, req.page()))
}

func adminGetItem(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (itemDTO, error) {
	return itemOrErr(s.svc.Admin.GetItem(ctx, c, req.ID))
}

func adminPurgeItem(ctx context.Context, s *GRPCServer, c *models.Caller, req *idRequest) (removedResponse, error) {
	return removedOrErr(s.svc.Admin.PurgeItem(ctx, c, req.ID))
}
