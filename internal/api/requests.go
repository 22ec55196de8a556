package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/service"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateTaskRequest is the body of POST /api/v1/tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	EndDate     *time.Time `json:"end_date"`
	Status      string     `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Assignees   []string   `json:"assignees" validate:"omitempty,max=50,dive,required,max=64"`
}

func (r CreateTaskRequest) toInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		DueAt:       r.EndDate,
		Status:      models.TaskStatus(r.Status),
		Assignees:   r.Assignees,
	}
}

// UpdateTaskRequest is the body of PUT /api/v1/tasks/{id}. Omitted title and status keep
// their values; the other fields replace the stored ones.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	EndDate     *time.Time `json:"end_date"`
	Status      *string    `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Assignees   []string   `json:"assignees" validate:"omitempty,max=50,dive,required,max=64"`
}

func (r UpdateTaskRequest) toInput() service.UpdateTaskInput {
	in := service.UpdateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		DueAt:       r.EndDate,
		Assignees:   r.Assignees,
	}
	if r.Status != nil {
		st := models.TaskStatus(*r.Status)
		in.Status = &st
	}
	return in
}

// decodeAndValidate reads a JSON body into v and runs the struct validator on it.
func decodeAndValidate(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := validate.Struct(v); err != nil {
		return describeValidation(err)
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}
