package roster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rollbook/internal/records"
)

// Notifier receives a human-readable line for the activity feed.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}

// Service manages the students and classes collections.
//
// Every mutation is a read-modify-write of a whole collection, so mutations
// are serialized by mu. Photo encoding runs before mu is taken and the
// duplicate checks are repeated once it is held.
type Service struct {
	store    *records.Store
	photos   PhotoEncoder
	notifier Notifier
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// NewService builds a roster service. photos and notifier may be nil.
func NewService(store *records.Store, photos PhotoEncoder, notifier Notifier, log zerolog.Logger) *Service {
	if photos == nil {
		photos = DataURLEncoder{MaxBytes: 2 << 20}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		store:    store,
		photos:   photos,
		notifier: notifier,
		validate: validator.New(),
		log:      log.With().Str("component", "roster").Logger(),
		now:      time.Now,
	}
}

// Students returns the full roster in insertion order.
func (s *Service) Students(ctx context.Context) []Student {
	return records.Load[Student](ctx, s.store, records.Students)
}

// Student returns one student by id.
func (s *Service) Student(ctx context.Context, id string) (Student, error) {
	for _, st := range s.Students(ctx) {
		if st.ID == id {
			return st, nil
		}
	}
	return Student{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
}

// Classes returns all classes in insertion order.
func (s *Service) Classes(ctx context.Context) []Class {
	return records.Load[Class](ctx, s.store, records.Classes)
}

// ClassSummaries returns each class with the number of students referencing it.
func (s *Service) ClassSummaries(ctx context.Context) []ClassSummary {
	students := s.Students(ctx)
	classes := s.Classes(ctx)
	out := make([]ClassSummary, 0, len(classes))
	for _, c := range classes {
		out = append(out, ClassSummary{Class: c, Students: len(Filter(students, c.Name, ""))})
	}
	return out
}

// AddStudent validates in, encodes photo when given and appends the student.
func (s *Service) AddStudent(ctx context.Context, in StudentInput, photo *Photo) (Student, error) {
	in = in.trimmed()
	if err := s.validate.Struct(in); err != nil {
		return Student{}, err
	}
	students, classes, err := s.loadForUpdate(ctx)
	if err != nil {
		return Student{}, err
	}
	if err := checkStudent(students, classes, "", in); err != nil {
		return Student{}, err
	}

	st := Student{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Roll:          in.Roll,
		Gender:        in.Gender,
		DOB:           in.DOB,
		ParentContact: in.ParentContact,
		Class:         in.Class,
	}
	if photo != nil {
		encoded, err := s.photos.EncodePhoto(ctx, photo.Filename, photo.Data)
		if err != nil {
			return Student{}, fmt.Errorf("encode photo: %w", err)
		}
		st.Photo = encoded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	students, classes, err = s.loadForUpdate(ctx)
	if err != nil {
		return Student{}, err
	}
	if err := checkStudent(students, classes, "", in); err != nil {
		return Student{}, err
	}
	students = append(students, st)
	if err := records.Save(ctx, s.store, records.Students, students); err != nil {
		return Student{}, fmt.Errorf("save students: %w", err)
	}

	s.log.Info().Str("student_id", st.ID).Str("class", st.Class).Msg("student added")
	s.notifier.Notify(ctx, fmt.Sprintf("Student %s added to %s", st.Name, st.Class))
	return st, nil
}

// UpdateStudent replaces the editable fields of a student. The photo is kept
// unless a new one is given.
func (s *Service) UpdateStudent(ctx context.Context, id string, in StudentInput, photo *Photo) (Student, error) {
	in = in.trimmed()
	if err := s.validate.Struct(in); err != nil {
		return Student{}, err
	}
	students, classes, err := s.loadForUpdate(ctx)
	if err != nil {
		return Student{}, err
	}
	if indexOfStudent(students, id) < 0 {
		return Student{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	if err := checkStudent(students, classes, id, in); err != nil {
		return Student{}, err
	}

	var encoded string
	if photo != nil {
		if encoded, err = s.photos.EncodePhoto(ctx, photo.Filename, photo.Data); err != nil {
			return Student{}, fmt.Errorf("encode photo: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	students, classes, err = s.loadForUpdate(ctx)
	if err != nil {
		return Student{}, err
	}
	idx := indexOfStudent(students, id)
	if idx < 0 {
		return Student{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	if err := checkStudent(students, classes, id, in); err != nil {
		return Student{}, err
	}

	st := students[idx]
	st.Name, st.Roll, st.Gender = in.Name, in.Roll, in.Gender
	st.DOB, st.ParentContact, st.Class = in.DOB, in.ParentContact, in.Class
	if encoded != "" {
		st.Photo = encoded
	}
	students[idx] = st

	if err := records.Save(ctx, s.store, records.Students, students); err != nil {
		return Student{}, fmt.Errorf("save students: %w", err)
	}
	s.log.Info().Str("student_id", id).Msg("student updated")
	s.notifier.Notify(ctx, fmt.Sprintf("Student %s updated", st.Name))
	return st, nil
}

// DeleteStudent removes a student. Committed snapshots keep their records.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := records.LoadForUpdate[Student](ctx, s.store, records.Students)
	if err != nil {
		return err
	}
	idx := indexOfStudent(students, id)
	if idx < 0 {
		return fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	name := students[idx].Name
	students = append(students[:idx], students[idx+1:]...)
	if err := records.Save(ctx, s.store, records.Students, students); err != nil {
		return fmt.Errorf("save students: %w", err)
	}
	s.log.Info().Str("student_id", id).Msg("student deleted")
	s.notifier.Notify(ctx, fmt.Sprintf("Student %s deleted", name))
	return nil
}

// AddClass creates a class; names are unique case-insensitively.
func (s *Service) AddClass(ctx context.Context, name string) (Class, error) {
	name = strings.TrimSpace(name)
	if err := s.validate.Var(name, "required,max=64"); err != nil {
		return Class{}, fmt.Errorf("class name: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	classes, err := records.LoadForUpdate[Class](ctx, s.store, records.Classes)
	if err != nil {
		return Class{}, err
	}
	if classIndexByName(classes, name, "") >= 0 {
		return Class{}, ErrDuplicateClass
	}
	c := Class{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UTC()}
	classes = append(classes, c)
	if err := records.Save(ctx, s.store, records.Classes, classes); err != nil {
		return Class{}, fmt.Errorf("save classes: %w", err)
	}
	s.log.Info().Str("class_id", c.ID).Str("class", c.Name).Msg("class added")
	s.notifier.Notify(ctx, fmt.Sprintf("Class %s created", c.Name))
	return c, nil
}

// RenameClass renames a class and rewrites the class of every student that
// referenced the old name. Committed attendance keeps the name it was saved with.
func (s *Service) RenameClass(ctx context.Context, id, newName string) (Class, error) {
	newName = strings.TrimSpace(newName)
	if err := s.validate.Var(newName, "required,max=64"); err != nil {
		return Class{}, fmt.Errorf("class name: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	students, classes, err := s.loadForUpdate(ctx)
	if err != nil {
		return Class{}, err
	}
	idx := classIndexByID(classes, id)
	if idx < 0 {
		return Class{}, fmt.Errorf("class %s: %w", id, ErrNotFound)
	}
	if classIndexByName(classes, newName, id) >= 0 {
		return Class{}, ErrDuplicateClass
	}

	oldName := classes[idx].Name
	classes[idx].Name = newName

	prev := slices.Clone(students)
	moved := 0
	for i := range students {
		if students[i].Class == oldName {
			students[i].Class = newName
			moved++
		}
	}
	if err := s.saveBoth(ctx, prev, students, moved > 0, classes); err != nil {
		return Class{}, err
	}

	s.log.Info().Str("class_id", id).Str("from", oldName).Str("to", newName).Int("students", moved).Msg("class renamed")
	s.notifier.Notify(ctx, fmt.Sprintf("Class %s renamed to %s", oldName, newName))
	return classes[idx], nil
}

// DeleteClass removes a class and clears it from its students. It returns the
// number of students that lost their class.
func (s *Service) DeleteClass(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	students, classes, err := s.loadForUpdate(ctx)
	if err != nil {
		return 0, err
	}
	idx := classIndexByID(classes, id)
	if idx < 0 {
		return 0, fmt.Errorf("class %s: %w", id, ErrNotFound)
	}
	name := classes[idx].Name

	prev := slices.Clone(students)
	cleared := 0
	for i := range students {
		if students[i].Class == name {
			students[i].Class = ""
			cleared++
		}
	}
	classes = append(classes[:idx], classes[idx+1:]...)
	if err := s.saveBoth(ctx, prev, students, cleared > 0, classes); err != nil {
		return 0, err
	}

	s.log.Info().Str("class_id", id).Int("students", cleared).Msg("class deleted")
	s.notifier.Notify(ctx, fmt.Sprintf("Class %s deleted", name))
	return cleared, nil
}

// loadForUpdate reads both collections, failing on backend errors.
func (s *Service) loadForUpdate(ctx context.Context) ([]Student, []Class, error) {
	students, err := records.LoadForUpdate[Student](ctx, s.store, records.Students)
	if err != nil {
		return nil, nil, err
	}
	classes, err := records.LoadForUpdate[Class](ctx, s.store, records.Classes)
	if err != nil {
		return nil, nil, err
	}
	return students, classes, nil
}

// saveBoth writes students (when changed) and then classes. If the classes
// write fails the previous students are put back, so students never name a
// class the class list does not have.
func (s *Service) saveBoth(ctx context.Context, prev, students []Student, studentsChanged bool, classes []Class) error {
	if studentsChanged {
		if err := records.Save(ctx, s.store, records.Students, students); err != nil {
			return fmt.Errorf("save students: %w", err)
		}
	}
	if err := records.Save(ctx, s.store, records.Classes, classes); err != nil {
		if studentsChanged {
			if rerr := records.Save(ctx, s.store, records.Students, prev); rerr != nil {
				s.log.Error().Err(rerr).Msg("restore students failed")
			}
		}
		return fmt.Errorf("save classes: %w", err)
	}
	return nil
}

// checkStudent rejects name or roll collisions with anyone but self, and
// classes that do not exist.
func checkStudent(students []Student, classes []Class, self string, in StudentInput) error {
	for _, st := range students {
		if st.ID == self {
			continue
		}
		if strings.EqualFold(st.Name, in.Name) || st.Roll == in.Roll {
			return ErrDuplicateStudent
		}
	}
	if classIndexByName(classes, in.Class, "") < 0 {
		return fmt.Errorf("%q: %w", in.Class, ErrUnknownClass)
	}
	return nil
}

func (in StudentInput) trimmed() StudentInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Roll = strings.TrimSpace(in.Roll)
	in.ParentContact = strings.TrimSpace(in.ParentContact)
	return in
}

func indexOfStudent(students []Student, id string) int {
	for i, st := range students {
		if st.ID == id {
			return i
		}
	}
	return -1
}

func classIndexByID(classes []Class, id string) int {
	for i, c := range classes {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func classIndexByName(classes []Class, name, exceptID string) int {
	for i, c := range classes {
		if c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// IsValidation reports whether err came from input validation.
func IsValidation(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}
