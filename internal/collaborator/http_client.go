package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/scheduler"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
)

const maxResponseBytes = 4 << 20

// HTTPClient talks to a remote scheduler API. Each request carries the bearer token of the
// viewer found in the context.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ scheduler.Collaborator = (*HTTPClient)(nil)

// NewHTTPClient builds a client for baseURL, e.g. "https://scheduler.example/api/v1".
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// ListSchedules fetches every schedule event.
func (c *HTTPClient) ListSchedules(ctx context.Context) ([]models.ScheduleEvent, error) {
	var events []models.ScheduleEvent
	err := c.do(ctx, http.MethodGet, "/schedules", nil, nil, &events)
	return events, err
}

// ListClasses fetches classes matching scope.
func (c *HTTPClient) ListClasses(ctx context.Context, scope models.ClassScope) ([]models.Class, error) {
	query := url.Values{}
	if scope.TeacherID != "" {
		query.Set("teacherId", scope.TeacherID)
	}
	if len(scope.ClassIDs) > 0 {
		query.Set("ids", strings.Join(scope.ClassIDs, ","))
	}
	var classes []models.Class
	err := c.do(ctx, http.MethodGet, "/classes", query, nil, &classes)
	return classes, err
}

// ListTeachers fetches the teacher directory.
func (c *HTTPClient) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	err := c.do(ctx, http.MethodGet, "/teachers", nil, nil, &teachers)
	return teachers, err
}

// ListClassrooms fetches the classroom directory.
func (c *HTTPClient) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	var rooms []models.Classroom
	err := c.do(ctx, http.MethodGet, "/classrooms", nil, nil, &rooms)
	return rooms, err
}

// ListEnrollments fetches the classes a student is enrolled in.
func (c *HTTPClient) ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := c.do(ctx, http.MethodGet, "/students/"+url.PathEscape(studentID)+"/enrollments", nil, nil, &enrollments)
	return enrollments, err
}

// ListChildren fetches the students linked to a parent.
func (c *HTTPClient) ListChildren(ctx context.Context, parentID string) ([]models.Child, error) {
	var children []models.Child
	err := c.do(ctx, http.MethodGet, "/parents/"+url.PathEscape(parentID)+"/children", nil, nil, &children)
	return children, err
}

// CreateSchedule posts a new event and returns the stored copy.
func (c *HTTPClient) CreateSchedule(ctx context.Context, event models.ScheduleEvent) (*models.ScheduleEvent, error) {
	body := map[string]interface{}{
		"class_id":     event.ClassID,
		"classroom_id": event.ClassroomID,
		"day_of_week":  event.DayOfWeek,
		"start_time":   event.StartTime,
		"end_time":     event.EndTime,
	}
	var created models.ScheduleEvent
	if err := c.do(ctx, http.MethodPost, "/schedules", nil, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// PatchSchedule sends only the changed fields of an event.
func (c *HTTPClient) PatchSchedule(ctx context.Context, id string, patch models.SchedulePatch) (*models.ScheduleEvent, error) {
	var updated models.ScheduleEvent
	if err := c.do(ctx, http.MethodPatch, "/schedules/"+url.PathEscape(id), nil, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSchedule removes an event.
func (c *HTTPClient) DeleteSchedule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/schedules/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if viewer, ok := scheduler.ViewerFromContext(ctx); ok && viewer.Token != "" {
		req.Header.Set("Authorization", "Bearer "+viewer.Token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := contextError(err); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn("collaborator request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &scheduler.StatusError{Status: http.StatusBadGateway, Code: appErrors.ErrServiceUnavailable.Code, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &scheduler.StatusError{Status: http.StatusBadGateway, Code: appErrors.ErrServiceUnavailable.Code, Message: "read response: " + err.Error()}
	}
	c.logger.Debug("collaborator request", zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failure(resp.StatusCode, raw)
	}
	if dest == nil || len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &scheduler.StatusError{Status: http.StatusBadGateway, Code: appErrors.ErrInternal.Code, Message: "decode response: " + err.Error()}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return &scheduler.StatusError{Status: http.StatusBadGateway, Code: appErrors.ErrInternal.Code, Message: "decode data: " + err.Error()}
	}
	return nil
}

func failure(status int, raw []byte) error {
	out := &scheduler.StatusError{Status: status, Message: http.StatusText(status)}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		out.Code = env.Error.Code
		if env.Error.Message != "" {
			out.Message = env.Error.Message
		}
	}
	return out
}

// contextError passes cancellation and deadlines through unchanged so callers can tell them
// apart from server failures.
func contextError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return nil
	}
}
