package roster

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/records"
	"rollbook/internal/store"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type notes struct {
	mu    sync.Mutex
	lines []string
}

func (n *notes) Notify(_ context.Context, text string) {
	n.mu.Lock()
	n.lines = append(n.lines, text)
	n.mu.Unlock()
}

type failingEncoder struct{}

func (failingEncoder) EncodePhoto(context.Context, string, []byte) (string, error) {
	return "", errors.New("cdn down")
}

func newService(t *testing.T) (*Service, *notes) {
	t.Helper()
	n := &notes{}
	svc := NewService(records.New(store.NewMemory(), zerolog.Nop()), nil, n, zerolog.Nop())
	return svc, n
}

func input(name, roll, class string) StudentInput {
	return StudentInput{
		Name:          name,
		Roll:          roll,
		Gender:        "F",
		DOB:           "2012-05-01",
		ParentContact: "555-0100",
		Class:         class,
	}
}

func TestAddStudentRequiresFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)

	_, err = svc.AddStudent(ctx, StudentInput{Name: "Ann"}, nil)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	bad := input("Ann", "1", "5A")
	bad.DOB = "01/05/2012"
	_, err = svc.AddStudent(ctx, bad, nil)
	assert.True(t, IsValidation(err))
	assert.Empty(t, svc.Students(ctx))
}

func TestAddStudentRejectsDuplicates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)

	_, err = svc.AddStudent(ctx, input("Ann", "1", "5A"), nil)
	require.NoError(t, err)

	_, err = svc.AddStudent(ctx, input("  ann ", "2", "5A"), nil)
	assert.ErrorIs(t, err, ErrDuplicateStudent)

	_, err = svc.AddStudent(ctx, input("Bob", "1", "5A"), nil)
	assert.ErrorIs(t, err, ErrDuplicateStudent)

	_, err = svc.AddStudent(ctx, input("Bob", "2", "6C"), nil)
	assert.ErrorIs(t, err, ErrUnknownClass)

	assert.Len(t, svc.Students(ctx), 1)
}

func TestAddStudentWithPhoto(t *testing.T) {
	svc, n := newService(t)
	ctx := context.Background()
	_, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)

	st, err := svc.AddStudent(ctx, input("Ann", "1", "5A"), &Photo{Filename: "ann.png", Data: pngHeader})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(st.Photo, "data:image/png;base64,"))
	assert.NotEmpty(t, st.ID)

	_, err = svc.AddStudent(ctx, input("Bob", "2", "5A"), &Photo{Filename: "bob.txt", Data: []byte("hello")})
	assert.ErrorIs(t, err, ErrNotImage)

	got := svc.Students(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, st, got[0])
	assert.Contains(t, n.lines, "Student Ann added to 5A")
}

func TestPhotoFailureLeavesRosterUntouched(t *testing.T) {
	ctx := context.Background()
	svc := NewService(records.New(store.NewMemory(), zerolog.Nop()), failingEncoder{}, nil, zerolog.Nop())
	_, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)

	_, err = svc.AddStudent(ctx, input("Ann", "1", "5A"), &Photo{Data: pngHeader})
	require.Error(t, err)
	assert.Empty(t, svc.Students(ctx))
}

func TestConcurrentAddsDoNotLoseWrites(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('A'+i)) + "-student"
			_, err := svc.AddStudent(ctx, input(name, name, "5A"), &Photo{Data: pngHeader})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, svc.Students(ctx), 20)
}

func TestUpdateStudentKeepsPhoto(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)
	_, err = svc.AddClass(ctx, "5B")
	require.NoError(t, err)

	ann, err := svc.AddStudent(ctx, input("Ann", "1", "5A"), &Photo{Data: pngHeader})
	require.NoError(t, err)
	_, err = svc.AddStudent(ctx, input("Bob", "2", "5A"), nil)
	require.NoError(t, err)

	updated, err := svc.UpdateStudent(ctx, ann.ID, input("Ann", "1", "5B"), nil)
	require.NoError(t, err)
	assert.Equal(t, "5B", updated.Class)
	assert.Equal(t, ann.Photo, updated.Photo)

	_, err = svc.UpdateStudent(ctx, ann.ID, input("Bob", "1", "5B"), nil)
	assert.ErrorIs(t, err, ErrDuplicateStudent)

	_, err = svc.UpdateStudent(ctx, "missing", input("Cy", "3", "5B"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteStudent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)
	ann, err := svc.AddStudent(ctx, input("Ann", "1", "5A"), nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStudent(ctx, ann.ID))
	assert.Empty(t, svc.Students(ctx))
	assert.ErrorIs(t, svc.DeleteStudent(ctx, ann.ID), ErrNotFound)
}

func TestClassNamesAreCaseInsensitivelyUnique(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)
	_, err = svc.AddClass(ctx, " 5a ")
	assert.ErrorIs(t, err, ErrDuplicateClass)

	_, err = svc.AddClass(ctx, "")
	assert.True(t, IsValidation(err))

	b, err := svc.AddClass(ctx, "6B")
	require.NoError(t, err)
	_, err = svc.RenameClass(ctx, b.ID, "5A")
	assert.ErrorIs(t, err, ErrDuplicateClass)

	// Changing only the case of its own name is allowed.
	renamed, err := svc.RenameClass(ctx, a.ID, "5a")
	require.NoError(t, err)
	assert.Equal(t, "5a", renamed.Name)
}

func TestRenameClassPropagatesToStudents(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	c5a, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)
	_, err = svc.AddClass(ctx, "6C")
	require.NoError(t, err)
	_, err = svc.AddStudent(ctx, input("Ann", "1", "5A"), nil)
	require.NoError(t, err)
	_, err = svc.AddStudent(ctx, input("Bob", "2", "5A"), nil)
	require.NoError(t, err)
	_, err = svc.AddStudent(ctx, input("Cy", "3", "6C"), nil)
	require.NoError(t, err)

	_, err = svc.RenameClass(ctx, c5a.ID, "5B")
	require.NoError(t, err)

	assert.Len(t, Filter(svc.Students(ctx), "5B", ""), 2)
	assert.Empty(t, Filter(svc.Students(ctx), "5A", ""))
	assert.Len(t, Filter(svc.Students(ctx), "6C", ""), 1)

	sums := svc.ClassSummaries(ctx)
	require.Len(t, sums, 2)
	assert.Equal(t, "5B", sums[0].Name)
	assert.Equal(t, 2, sums[0].Students)
}

func TestDeleteClassClearsStudents(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	c, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)
	_, err = svc.AddStudent(ctx, input("Ann", "1", "5A"), nil)
	require.NoError(t, err)

	cleared, err := svc.DeleteClass(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	assert.Empty(t, svc.Classes(ctx))
	assert.Equal(t, "", svc.Students(ctx)[0].Class)

	_, err = svc.DeleteClass(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilter(t *testing.T) {
	students := []Student{
		{ID: "1", Name: "Ann Lee", Roll: "R-01", Class: "5A"},
		{ID: "2", Name: "Bob", Roll: "R-02", Class: "5B"},
		{ID: "3", Name: "Cyan", Roll: "X-03", Class: "5A"},
	}
	assert.Len(t, Filter(students, "", ""), 3)
	assert.Len(t, Filter(students, "5A", ""), 2)
	assert.Equal(t, "1", Filter(students, "5A", "lee")[0].ID)
	assert.Len(t, Filter(students, "", "r-0"), 2)
	assert.Empty(t, Filter(students, "5C", ""))
}

// flakyKV fails Get or Set for chosen keys until reset.
type flakyKV struct {
	*store.Memory

	mu     sync.Mutex
	getErr map[string]error
	setErr map[string]error
}

func newFlakyKV() *flakyKV {
	return &flakyKV{Memory: store.NewMemory(), getErr: map[string]error{}, setErr: map[string]error{}}
}

func (f *flakyKV) failGet(key string, err error) {
	f.mu.Lock()
	f.getErr[key] = err
	f.mu.Unlock()
}

func (f *flakyKV) failSet(key string, err error) {
	f.mu.Lock()
	f.setErr[key] = err
	f.mu.Unlock()
}

func (f *flakyKV) reset() {
	f.mu.Lock()
	f.getErr, f.setErr = map[string]error{}, map[string]error{}
	f.mu.Unlock()
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	err := f.getErr[key]
	f.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	err := f.setErr[key]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Memory.Set(ctx, key, value)
}

func seededFlaky(t *testing.T) (*Service, *flakyKV, Class) {
	t.Helper()
	kv := newFlakyKV()
	svc := NewService(records.New(kv, zerolog.Nop()), nil, nil, zerolog.Nop())
	ctx := context.Background()
	c, err := svc.AddClass(ctx, "5A")
	require.NoError(t, err)
	for i, name := range []string{"Ann", "Bob", "Cy"} {
		_, err := svc.AddStudent(ctx, input(name, string(rune('1'+i)), "5A"), nil)
		require.NoError(t, err)
	}
	return svc, kv, c
}

func TestReadFailureNeverOverwritesRoster(t *testing.T) {
	svc, kv, c := seededFlaky(t)
	ctx := context.Background()
	timeout := errors.New("i/o timeout")

	kv.failGet(records.Students, timeout)
	_, err := svc.AddStudent(ctx, input("Dee", "4", "5A"), nil)
	assert.ErrorIs(t, err, timeout)
	assert.ErrorIs(t, svc.DeleteStudent(ctx, "any"), timeout)
	_, err = svc.RenameClass(ctx, c.ID, "5B")
	assert.ErrorIs(t, err, timeout)
	_, err = svc.DeleteClass(ctx, c.ID)
	assert.ErrorIs(t, err, timeout)

	kv.failGet(records.Classes, timeout)
	_, err = svc.AddClass(ctx, "6C")
	assert.ErrorIs(t, err, timeout)

	kv.reset()
	assert.Len(t, svc.Students(ctx), 3)
	classes := svc.Classes(ctx)
	require.Len(t, classes, 1)
	assert.Equal(t, "5A", classes[0].Name)
}

func TestClassWriteFailureRestoresStudents(t *testing.T) {
	svc, kv, c := seededFlaky(t)
	ctx := context.Background()
	full := errors.New("disk full")

	kv.failSet(records.Classes, full)
	_, err := svc.RenameClass(ctx, c.ID, "5B")
	assert.ErrorIs(t, err, full)
	_, err = svc.DeleteClass(ctx, c.ID)
	assert.ErrorIs(t, err, full)

	kv.reset()
	assert.Len(t, Filter(svc.Students(ctx), "5A", ""), 3)
	require.Len(t, svc.Classes(ctx), 1)
	assert.Equal(t, "5A", svc.Classes(ctx)[0].Name)
}
