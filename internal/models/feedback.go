// Package models contains domain models and entities.
package models

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Feedback is a single course feedback entry left by a student.
type Feedback struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	StudentID int64     `json:"student_id" bson:"student_id"`
	Course    string    `json:"course" bson:"course"`
	Text      string    `json:"feedback" bson:"feedback"`
	CreatedAt time.Time `json:"created_at,omitempty" bson:"created_at"`
}

// FeedbackCreate represents the data needed to store a new feedback entry.
type FeedbackCreate struct {
	StudentID int64
	Course    string
	Text      string
}

// Validation errors
var (
	ErrInvalidStudentID = errors.New("student id must be positive")
	ErrEmptyCourse      = errors.New("course cannot be empty")
	ErrInvalidCourse    = errors.New("course code must look like CS101")
	ErrEmptyFeedback    = errors.New("feedback cannot be empty")
	ErrFeedbackNotFound = errors.New("feedback not found")
)

var courseCodeRegex = regexp.MustCompile(`^[A-Z]{2,6}[0-9]{2,4}$`)

// NormalizeCourse upper-cases and trims a course code.
func NormalizeCourse(course string) string {
	return strings.ToUpper(strings.TrimSpace(course))
}

// ValidateCourse normalizes a course code and checks its shape.
func ValidateCourse(course string) (string, error) {
	course = NormalizeCourse(course)
	if course == "" {
		return "", ErrEmptyCourse
	}
	if !courseCodeRegex.MatchString(course) {
		return "", ErrInvalidCourse
	}
	return course, nil
}

// Validate validates the FeedbackCreate data. Course is normalized in place.
func (c *FeedbackCreate) Validate() error {
	if c.StudentID <= 0 {
		return ErrInvalidStudentID
	}
	course, err := ValidateCourse(c.Course)
	if err != nil {
		return err
	}
	c.Course = course
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyFeedback
	}
	return nil
}

// AsCreate returns the creation payload for an entry.
func (f *Feedback) AsCreate() *FeedbackCreate {
	return &FeedbackCreate{
		StudentID: f.StudentID,
		Course:    f.Course,
		Text:      f.Text,
	}
}

// Clone returns a copy of the entry.
func (f *Feedback) Clone() *Feedback {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
