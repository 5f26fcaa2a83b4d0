package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
)

// meResponse is the envelope returned by the identity service "me" endpoint.
type meResponse struct {
	Data struct {
		ID       int64  `json:"id"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		UserType string `json:"user_type"`
		Account  struct {
			Username string `json:"username"`
			IsAdmin  bool   `json:"is_admin"`
		} `json:"account"`
		LecturerInfo *struct {
			DepartmentID *int64 `json:"department_id"`
		} `json:"lecturer_info"`
	} `json:"data"`
}

// RemoteProvider validates tokens by calling the identity service.
type RemoteProvider struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

func NewRemoteProvider(url string, timeout time.Duration, client *http.Client) *RemoteProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteProvider{url: url, client: client, timeout: timeout}
}

func (p *RemoteProvider) Validate(ctx context.Context, token string) (*models.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	req.Header.Set("Authorization", common.BearerPrefix+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, common.Errorf(common.ErrorServiceUnavailable, "identity service timed out")
		}
		return nil, common.Errorf(common.ErrorServiceUnavailable, "identity service unreachable: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, common.Errorf(common.ErrorUnauthorized, "identity service rejected the token")
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, common.Errorf(common.ErrorServiceUnavailable, "identity service returned %s: %s", resp.Status, b)
	}

	var body meResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, common.Errorf(common.ErrorServiceUnavailable, "identity response: %v", err)
	}
	if body.Data.ID == 0 || body.Data.Account.Username == "" {
		return nil, common.Errorf(common.ErrorUnauthorized, "identity response has no user")
	}

	id := &models.Identity{
		UserID:   body.Data.ID,
		Username: body.Data.Account.Username,
		Email:    body.Data.Email,
		FullName: body.Data.FullName,
		IsAdmin:  body.Data.Account.IsAdmin,
		UserType: body.Data.UserType,
	}
	if body.Data.LecturerInfo != nil {
		id.DepartmentID = body.Data.LecturerInfo.DepartmentID
	}
	return id, nil
}
