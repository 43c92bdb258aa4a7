// Package school contains the resource clients built on the gateway:
// students, fees, personnel, timetables, announcements and exports.
package school

import (
	"net/url"
	"strconv"

	"github.com/felixgeelhaar/schoolctl/internal/gateway"
)

// UnknownClass is shown for a student whose class the backend did not send.
const UnknownClass = "Unknown Class"

// ClassRef is the class a student belongs to.
type ClassRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Student is a student record.
type Student struct {
	ID             int       `json:"id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	Matricule      string    `json:"matricule"`
	Gender         string    `json:"gender,omitempty"`
	ClassID        int       `json:"classId,omitempty"`
	Class          *ClassRef `json:"class,omitempty"`
	ClassName      string    `json:"className,omitempty"`
	AcademicYearID int       `json:"academicYearId,omitempty"`
	Status         string    `json:"status,omitempty"`
}

// DisplayClass returns the class name, falling back to UnknownClass.
func (s Student) DisplayClass() string {
	if s.Class != nil && s.Class.Name != "" {
		return s.Class.Name
	}
	if s.ClassName != "" {
		return s.ClassName
	}
	return UnknownClass
}

// Fee is a fee assigned to a student.
type Fee struct {
	ID          int     `json:"id" validate:"required"`
	StudentID   int     `json:"studentId"`
	StudentName string  `json:"studentName"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	AmountPaid  float64 `json:"amountPaid" validate:"gte=0"`
	Status      string  `json:"status"`
	DueDate     string  `json:"dueDate,omitempty"`
}

// Balance returns the amount still owed.
func (f Fee) Balance() float64 {
	return f.Amount - f.AmountPaid
}

// Personnel is a staff member.
type Personnel struct {
	ID        int      `json:"id" validate:"required"`
	Name      string   `json:"name" validate:"required"`
	Email     string   `json:"email,omitempty"`
	Matricule string   `json:"matricule,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// TimetableSlot is one period of a class timetable.
type TimetableSlot struct {
	ID        int    `json:"id" validate:"required"`
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	Subject   string `json:"subject"`
	Teacher   string `json:"teacher,omitempty"`
	Room      string `json:"room,omitempty"`
}

// Announcement is a notice published to an audience.
type Announcement struct {
	ID          int    `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Message     string `json:"message"`
	Audience    string `json:"audience,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// ListParams are the filters of a paginated list.
type ListParams struct {
	Page    int
	Limit   int
	Search  string
	ClassID int
}

// Values returns the query parameters; zero values are omitted.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.ClassID > 0 {
		v.Set("classId", strconv.Itoa(p.ClassID))
	}
	return v
}

// Page is one page of a list.
type Page[T any] struct {
	Items []T         `json:"items"`
	Meta  gateway.Meta `json:"meta"`
}
