package roster

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateStudent = errors.New("student with this name or roll number already exists")
	ErrDuplicateClass   = errors.New("class already exists")
	ErrUnknownClass     = errors.New("class does not exist")
	ErrNotImage         = errors.New("photo is not an image")
	ErrPhotoTooLarge    = errors.New("photo too large")
)

// Student is a roster member. Class holds the class name, not its id.
type Student struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Roll          string `json:"roll"`
	Gender        string `json:"gender"`
	DOB           string `json:"dob"`
	ParentContact string `json:"parentContact"`
	Class         string `json:"class"`
	Photo         string `json:"photo,omitempty"`
}

// Class is a named group of students.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClassSummary pairs a class with its current head count.
type ClassSummary struct {
	Class
	Students int `json:"students"`
}

// StudentInput is the editable part of a Student.
type StudentInput struct {
	Name          string `json:"name" form:"name" validate:"required,max=120"`
	Roll          string `json:"roll" form:"roll" validate:"required,max=32"`
	Gender        string `json:"gender" form:"gender" validate:"required"`
	DOB           string `json:"dob" form:"dob" validate:"required,datetime=2006-01-02"`
	ParentContact string `json:"parentContact" form:"parentContact" validate:"required,max=64"`
	Class         string `json:"class" form:"class" validate:"required"`
}

// Photo is an uploaded image awaiting encoding.
type Photo struct {
	Filename string
	Data     []byte
}
