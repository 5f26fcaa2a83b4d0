// Package directory talks to the institution's system-management service:
// courses, departments, classes, enrolments and notifications. Every call
// forwards the caller's bearer token and is bounded by the client timeout.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
)

const coursesPageSize = 100

// CourseFilter narrows ListCourses. Nil fields are not sent.
type CourseFilter struct {
	SemesterID   *int64
	LecturerID   *int64
	DepartmentID *int64
	Search       string
}

type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{baseURL: baseURL, timeout: timeout, client: client}
}

type courseDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type classDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"class_name"`
	Code string `json:"class_code"`
}

type studentDTO struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

type notificationDTO struct {
	UserID   int64          `json:"user_id"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Type     string         `json:"type"`
	Priority string         `json:"priority"`
	Metadata map[string]any `json:"metadata"`
}

func toNotificationDTO(n models.Notification) notificationDTO {
	d := notificationDTO{
		UserID:   n.RecipientID,
		Title:    n.Title,
		Message:  n.Message,
		Type:     n.Type,
		Priority: n.Priority,
		Metadata: n.Metadata,
	}
	if d.Type == "" {
		d.Type = "INFO"
	}
	if d.Priority == "" {
		d.Priority = "NORMAL"
	}
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	return d
}

func (c *Client) ListCourses(ctx context.Context, token string, f CourseFilter) ([]models.Course, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(coursesPageSize))
	setID(q, "semester_id", f.SemesterID)
	setID(q, "lecturer_id", f.LecturerID)
	setID(q, "department_id", f.DepartmentID)
	if f.Search != "" {
		q.Set("search", f.Search)
	}

	var body struct {
		Data []courseDTO `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/attendance/courses", token, q, nil, &body); err != nil {
		return nil, err
	}

	out := make([]models.Course, 0, len(body.Data))
	for _, d := range body.Data {
		out = append(out, models.Course{ID: d.ID, Name: d.Name, Code: d.Code})
	}
	return out, nil
}

func (c *Client) ListDepartments(ctx context.Context, token string) ([]models.Department, error) {
	var body struct {
		Data []courseDTO `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/departments", token, nil, nil, &body); err != nil {
		return nil, err
	}

	out := make([]models.Department, 0, len(body.Data))
	for _, d := range body.Data {
		out = append(out, models.Department{ID: d.ID, Name: d.Name, Code: d.Code})
	}
	return out, nil
}

// GetDepartment looks the department up in the full listing; the directory
// has no single-department endpoint.
func (c *Client) GetDepartment(ctx context.Context, token string, id int64) (*models.Department, error) {
	deps, err := c.ListDepartments(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range deps {
		if deps[i].ID == id {
			return &deps[i], nil
		}
	}
	return nil, common.Errorf(common.ErrorNotFound, "department %d not found", id)
}

func (c *Client) LecturerClasses(ctx context.Context, token string, lecturerID int64) ([]models.Class, error) {
	var body struct {
		Data []classDTO `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/classes/lecturer/%d", lecturerID)
	if err := c.do(ctx, http.MethodGet, path, token, nil, nil, &body); err != nil {
		return nil, err
	}

	out := make([]models.Class, 0, len(body.Data))
	for _, d := range body.Data {
		out = append(out, models.Class{ID: d.ID, Name: d.Name, Code: d.Code})
	}
	return out, nil
}

// TeachesClass reports whether the lecturer teaches classID. A directory
// failure is returned as an error, never as false.
func (c *Client) TeachesClass(ctx context.Context, token string, lecturerID, classID int64) (bool, error) {
	classes, err := c.LecturerClasses(ctx, token, lecturerID)
	if err != nil {
		return false, err
	}
	for _, cl := range classes {
		if cl.ID == classID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) ClassStudents(ctx context.Context, token string, classID int64) ([]models.Student, error) {
	var body struct {
		Data []studentDTO `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/student/class/%d", classID)
	if err := c.do(ctx, http.MethodGet, path, token, nil, nil, &body); err != nil {
		return nil, err
	}

	out := make([]models.Student, 0, len(body.Data))
	for _, d := range body.Data {
		out = append(out, models.Student{ID: d.ID, FullName: d.FullName})
	}
	return out, nil
}

func (c *Client) Notify(ctx context.Context, token string, n models.Notification) error {
	return c.do(ctx, http.MethodPost, "/api/v1/notifications/send", token, nil, toNotificationDTO(n), nil)
}

func (c *Client) NotifyBulk(ctx context.Context, token string, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	payload := struct {
		Notifications []notificationDTO `json:"notifications"`
	}{Notifications: make([]notificationDTO, 0, len(ns))}
	for _, n := range ns {
		payload.Notifications = append(payload.Notifications, toNotificationDTO(n))
	}
	return c.do(ctx, http.MethodPost, "/api/v1/notifications/send-bulk", token, nil, payload, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, q url.Values, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("directory request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("directory request: %w", err)
	}
	req.Header.Set("Authorization", common.BearerPrefix+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return common.Errorf(common.ErrorServiceUnavailable, "directory %s timed out", path)
		}
		return common.Errorf(common.ErrorServiceUnavailable, "directory unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return common.Errorf(common.ErrorServiceUnavailable, "directory %s returned %s: %s", path, resp.Status, b)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return common.Errorf(common.ErrorServiceUnavailable, "directory %s response: %v", path, err)
	}
	return nil
}

func setID(q url.Values, key string, id *int64) {
	if id != nil {
		q.Set(key, strconv.FormatInt(*id, 10))
	}
}
