// Package training serves the staff training portal: courses built from
// modules and lessons, and each staff member's completion progress.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/smiledent/clinic-site/internal/backend"
	"github.com/smiledent/clinic-site/pkg/logging"
)

const (
	TableCourses  = "training_courses"
	TableModules  = "training_modules"
	TableLessons  = "training_lessons"
	TableProgress = "user_progress"
)

var (
	ErrCourseNotFound = errors.New("training: course not found")
	ErrLessonNotFound = errors.New("training: lesson not found")
)

type Lesson struct {
	ID          string `json:"id"`
	ModuleID    string `json:"module_id"`
	Title       string `json:"title"`
	Content     string `json:"content,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	DurationMin int    `json:"duration_minutes"`
	Position    int    `json:"position"`
	Completed   bool   `json:"completed"`
}

type Module struct {
	ID       string   `json:"id"`
	CourseID string   `json:"course_id"`
	Title    string   `json:"title"`
	Position int      `json:"position"`
	Lessons  []Lesson `json:"lessons"`
}

type Course struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Position    int      `json:"position"`
	Modules     []Module `json:"modules"`
}

// Progress is a staff member's completion of one course.
type Progress struct {
	CourseID  string `json:"course_id"`
	Title     string `json:"title"`
	Total     int    `json:"total_lessons"`
	Completed int    `json:"completed_lessons"`
	Percent   int    `json:"percent"`
}

type progressRow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Backend reads and writes training tables.
type Backend interface {
	Select(ctx context.Context, table string, q *backend.Query, out any) error
	Insert(ctx context.Context, table string, row any, out any) error
}

// Service builds course trees and tracks progress.
type Service struct {
	backend Backend
	logger  *logging.Logger
	now     func() time.Time
}

// NewService creates a training service.
func NewService(b Backend, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{backend: b, logger: logger, now: time.Now}
}

func byPosition() *backend.Query {
	return backend.NewQuery().Order("position", true)
}

// Courses loads every course with its modules and lessons in position order.
func (s *Service) Courses(ctx context.Context) ([]Course, error) {
	var courses []Course
	if err := s.backend.Select(ctx, TableCourses, byPosition().Eq("published", true), &courses); err != nil {
		return nil, fmt.Errorf("training: load courses: %w", err)
	}
	var modules []Module
	if err := s.backend.Select(ctx, TableModules, byPosition(), &modules); err != nil {
		return nil, fmt.Errorf("training: load modules: %w", err)
	}
	var lessons []Lesson
	if err := s.backend.Select(ctx, TableLessons, byPosition().Select("id", "module_id", "title", "video_url", "duration_minutes", "position"), &lessons); err != nil {
		return nil, fmt.Errorf("training: load lessons: %w", err)
	}
	return buildTree(courses, modules, lessons), nil
}

func buildTree(courses []Course, modules []Module, lessons []Lesson) []Course {
	lessonsByModule := make(map[string][]Lesson)
	for _, l := range lessons {
		lessonsByModule[l.ModuleID] = append(lessonsByModule[l.ModuleID], l)
	}
	modulesByCourse := make(map[string][]Module)
	for _, m := range modules {
		m.Lessons = lessonsByModule[m.ID]
		if m.Lessons == nil {
			m.Lessons = []Lesson{}
		}
		sort.SliceStable(m.Lessons, func(i, j int) bool { return m.Lessons[i].Position < m.Lessons[j].Position })
		modulesByCourse[m.CourseID] = append(modulesByCourse[m.CourseID], m)
	}
	out := make([]Course, 0, len(courses))
	for _, c := range courses {
		c.Modules = modulesByCourse[c.ID]
		if c.Modules == nil {
			c.Modules = []Module{}
		}
		sort.SliceStable(c.Modules, func(i, j int) bool { return c.Modules[i].Position < c.Modules[j].Position })
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (s *Service) completedLessons(ctx context.Context, userID string) (map[string]bool, error) {
	var rows []progressRow
	q := backend.NewQuery().Select("lesson_id").Eq("user_id", userID)
	if err := s.backend.Select(ctx, TableProgress, q, &rows); err != nil {
		return nil, fmt.Errorf("training: load progress: %w", err)
	}
	done := make(map[string]bool, len(rows))
	for _, r := range rows {
		done[r.LessonID] = true
	}
	return done, nil
}

// CoursesFor returns the course tree with the user's completed lessons marked.
func (s *Service) CoursesFor(ctx context.Context, userID string) ([]Course, error) {
	courses, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	done, err := s.completedLessons(ctx, userID)
	if err != nil {
		return nil, err
	}
	for ci := range courses {
		for mi := range courses[ci].Modules {
			for li := range courses[ci].Modules[mi].Lessons {
				l := &courses[ci].Modules[mi].Lessons[li]
				l.Completed = done[l.ID]
			}
		}
	}
	return courses, nil
}

// Course returns one course tree for the user.
func (s *Service) Course(ctx context.Context, userID, courseID string) (Course, error) {
	courses, err := s.CoursesFor(ctx, userID)
	if err != nil {
		return Course{}, err
	}
	for _, c := range courses {
		if c.ID == courseID {
			return c, nil
		}
	}
	return Course{}, ErrCourseNotFound
}

// Lesson loads the full lesson including its content.
func (s *Service) Lesson(ctx context.Context, lessonID string) (Lesson, error) {
	var rows []Lesson
	if err := s.backend.Select(ctx, TableLessons, backend.NewQuery().Eq("id", lessonID).Limit(1), &rows); err != nil {
		return Lesson{}, fmt.Errorf("training: load lesson: %w", err)
	}
	if len(rows) == 0 {
		return Lesson{}, ErrLessonNotFound
	}
	return rows[0], nil
}

// Progress computes per-course completion for the user.
func (s *Service) Progress(ctx context.Context, userID string) ([]Progress, error) {
	courses, err := s.CoursesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Progress, 0, len(courses))
	for _, c := range courses {
		out = append(out, CourseProgress(c))
	}
	return out, nil
}

// CourseProgress counts completed lessons in c. An empty course is 0%.
func CourseProgress(c Course) Progress {
	p := Progress{CourseID: c.ID, Title: c.Title}
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			p.Total++
			if l.Completed {
				p.Completed++
			}
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Completed) * 100 / float64(p.Total)))
	}
	return p
}

// MarkLessonComplete records completion once per user and lesson.
func (s *Service) MarkLessonComplete(ctx context.Context, userID, lessonID string) error {
	if _, err := s.Lesson(ctx, lessonID); err != nil {
		return err
	}
	done, err := s.completedLessons(ctx, userID)
	if err != nil {
		return err
	}
	if done[lessonID] {
		return nil
	}
	row := progressRow{ID: uuid.NewString(), UserID: userID, LessonID: lessonID, CompletedAt: s.now().UTC()}
	if err := s.backend.Insert(ctx, TableProgress, row, nil); err != nil {
		return fmt.Errorf("training: save progress: %w", err)
	}
	s.logger.Info("training: lesson completed", "user_id", userID, "lesson_id", lessonID)
	return nil
}
