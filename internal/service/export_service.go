package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"taskboard/internal/domain"
	"taskboard/internal/models"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Tasks"

var exportHeaders = []string{"ID", "Title", "Status", "Owner", "Assignees", "Due", "Description", "Created"}

// ExportService writes a member's tasks as an xlsx workbook.
type ExportService struct {
	repo domain.TaskRepository
}

func NewExportService(repo domain.TaskRepository) *ExportService {
	return &ExportService{repo: repo}
}

// Export writes the workbook for username to w.
func (s *ExportService) Export(ctx context.Context, username string, w io.Writer) error {
	tasks, err := s.repo.GetTasksByMember(ctx, username)
	if err != nil {
		return err
	}

	f, err := buildWorkbook(tasks)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func buildWorkbook(tasks []*models.Task) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
		_ = f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	for i, t := range tasks {
		row := i + 2
		values := []interface{}{
			t.ID,
			t.Title,
			string(t.Status),
			t.Owner,
			strings.Join(t.Assignees, ", "),
			"",
			"",
			t.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		if t.DueAt != nil {
			values[5] = t.DueAt.UTC().Format("2006-01-02")
		}
		if t.Description != nil {
			values[6] = *t.Description
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 8)
	_ = f.SetColWidth(exportSheet, "B", "B", 40)
	_ = f.SetColWidth(exportSheet, "C", "F", 18)
	_ = f.SetColWidth(exportSheet, "G", "G", 50)
	_ = f.SetColWidth(exportSheet, "H", "H", 18)
	return f, nil
}
