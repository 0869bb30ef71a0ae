package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smiledent/clinic-site/internal/backend"
	"github.com/smiledent/clinic-site/internal/http/middleware"
	"github.com/smiledent/clinic-site/pkg/logging"
)

// fakeBackend filters stored rows by eq predicates and round-trips them through JSON.
type fakeBackend struct {
	mu      sync.Mutex
	tables  map[string][]map[string]any
	failOn  string
	inserts int
}

func (f *fakeBackend) Select(_ context.Context, table string, q *backend.Query, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if table == f.failOn {
		return errors.New("backend down")
	}
	var matched []map[string]any
	for _, row := range f.tables[table] {
		if matches(row, q) {
			matched = append(matched, row)
		}
	}
	if matched == nil {
		matched = []map[string]any{}
	}
	raw, err := json.Marshal(matched)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func matches(row map[string]any, q *backend.Query) bool {
	for col, vals := range q.Values() {
		for _, v := range vals {
			want, ok := strings.CutPrefix(v, "eq.")
			if !ok {
				continue
			}
			if fmt.Sprint(row[col]) != want {
				return false
			}
		}
	}
	return true
}

func (f *fakeBackend) Insert(_ context.Context, table string, row any, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	f.tables[table] = append(f.tables[table], m)
	f.inserts++
	return nil
}

func seeded() *fakeBackend {
	return &fakeBackend{tables: map[string][]map[string]any{
		TableCourses: {
			{"id": "c2", "title": "Стерилизация", "position": 2, "published": true},
			{"id": "c1", "title": "Сервис", "position": 1, "published": true},
			{"id": "c3", "title": "Черновик", "position": 3, "published": false},
		},
		TableModules: {
			{"id": "m2", "course_id": "c1", "title": "Звонки", "position": 2},
			{"id": "m1", "course_id": "c1", "title": "Приём", "position": 1},
			{"id": "m3", "course_id": "c2", "title": "Автоклав", "position": 1},
		},
		TableLessons: {
			{"id": "l2", "module_id": "m1", "title": "Запись", "position": 2, "content": "текст"},
			{"id": "l1", "module_id": "m1", "title": "Встреча", "position": 1},
			{"id": "l3", "module_id": "m2", "title": "Скрипт", "position": 1},
			{"id": "l4", "module_id": "m3", "title": "Режимы", "position": 1},
		},
		TableProgress: {
			{"id": "p1", "user_id": "u1", "lesson_id": "l1"},
			{"id": "p2", "user_id": "u2", "lesson_id": "l3"},
		},
	}}
}

func TestCoursesBuildsOrderedTree(t *testing.T) {
	svc := NewService(seeded(), logging.New("error"))

	courses, err := svc.Courses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "c1", courses[0].ID)
	require.Len(t, courses[0].Modules, 2)
	assert.Equal(t, "m1", courses[0].Modules[0].ID)
	require.Len(t, courses[0].Modules[0].Lessons, 2)
	assert.Equal(t, "l1", courses[0].Modules[0].Lessons[0].ID)
	assert.Equal(t, "l2", courses[0].Modules[0].Lessons[1].ID)
}

func TestProgressPerCourse(t *testing.T) {
	svc := NewService(seeded(), logging.New("error"))

	progress, err := svc.Progress(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.Equal(t, Progress{CourseID: "c1", Title: "Сервис", Total: 3, Completed: 1, Percent: 33}, progress[0])
	assert.Equal(t, 0, progress[1].Percent)
}

func TestCourseProgressEmptyCourse(t *testing.T) {
	p := CourseProgress(Course{ID: "c", Modules: []Module{{Lessons: []Lesson{}}}})
	assert.Equal(t, 0, p.Total)
	assert.Equal(t, 0, p.Percent)
}

func TestMarkLessonCompleteIsIdempotent(t *testing.T) {
	fb := seeded()
	svc := NewService(fb, logging.New("error"))
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, svc.MarkLessonComplete(ctx, "u1", "l2"))
	require.NoError(t, svc.MarkLessonComplete(ctx, "u1", "l2"))
	require.NoError(t, svc.MarkLessonComplete(ctx, "u1", "l1"))
	assert.Equal(t, 1, fb.inserts)

	progress, err := svc.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 67, progress[0].Percent)
}

func TestMarkLessonCompleteUnknownLesson(t *testing.T) {
	svc := NewService(seeded(), logging.New("error"))
	err := svc.MarkLessonComplete(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

const testSecret = "training-secret"

func serve(t *testing.T, fb *fakeBackend, method, path, subject string) *httptest.ResponseRecorder {
	t.Helper()
	r := http.NewServeMux()
	h := NewHandler(NewService(fb, logging.New("error")), logging.New("error"))
	r.Handle("/", middleware.StaffJWT(testSecret, middleware.RoleStaff)(h.Routes()))

	req := httptest.NewRequest(method, path, nil)
	if subject != "" {
		token, err := middleware.IssueStaffToken(testSecret, subject, middleware.RoleStaff, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRequiresToken(t *testing.T) {
	rec := serve(t, seeded(), http.MethodGet, "/courses", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerCourseWithProgress(t *testing.T) {
	rec := serve(t, seeded(), http.MethodGet, "/courses/c1", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data     Course   `json:"data"`
		Progress Progress `json:"progress"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Data.Modules[0].Lessons[0].Completed)
	assert.Equal(t, 1, body.Progress.Completed)
}

func TestHandlerCompleteLesson(t *testing.T) {
	fb := seeded()
	rec := serve(t, fb, http.MethodPost, "/lessons/l4/complete", "u3")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, fb.inserts)

	rec = serve(t, fb, http.MethodPost, "/lessons/missing/complete", "u3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerBackendFailure(t *testing.T) {
	fb := seeded()
	fb.failOn = TableModules
	rec := serve(t, fb, http.MethodGet, "/progress", "u1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
