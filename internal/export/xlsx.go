// Package export converts feedback to and from spreadsheets.
package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/feedtrack/feedtrack/internal/models"
)

// ContentTypeXLSX is the MIME type of the workbooks written here.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Header is the first row of every exported sheet.
var Header = []string{"Student ID", "Course", "Feedback", "Submitted At"}

// ErrNoSheet is returned when a workbook has no sheets to read.
var ErrNoSheet = errors.New("workbook does not contain any sheets")

// WriteCourseXLSX writes a single-sheet workbook listing the entries for a course.
func WriteCourseXLSX(w io.Writer, course string, entries []*models.Feedback) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(course)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{e.StudentID, e.Course, e.Text, e.CreatedAt.UTC().Format(time.RFC3339)}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "C", "C", 60); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ImportRow is a parsed data row and its 1-based sheet row number.
type ImportRow struct {
	Row    int
	Create *models.FeedbackCreate
}

// RowError describes a data row that could not be imported.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// ReadFeedbackXLSX reads entries from the first sheet of a workbook laid out
// like WriteCourseXLSX output. The header row is skipped; a blank course cell
// falls back to defaultCourse. Rows that cannot be parsed are returned as
// RowErrors alongside the rows that could.
func ReadFeedbackXLSX(r io.Reader, defaultCourse string) ([]ImportRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	var (
		parsed  []ImportRow
		skipped []RowError
	)
	for i, row := range rows {
		if i == 0 || isBlank(row) {
			continue
		}

		create, err := parseRow(row, defaultCourse)
		if err != nil {
			skipped = append(skipped, RowError{Row: i + 1, Err: err})
			continue
		}
		parsed = append(parsed, ImportRow{Row: i + 1, Create: create})
	}
	return parsed, skipped, nil
}

func parseRow(row []string, defaultCourse string) (*models.FeedbackCreate, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	studentID, err := strconv.ParseInt(cell(0), 10, 64)
	if err != nil {
		return nil, models.ErrInvalidStudentID
	}

	course := cell(1)
	if course == "" {
		course = defaultCourse
	}

	create := &models.FeedbackCreate{
		StudentID: studentID,
		Course:    course,
		Text:      cell(2),
	}
	if err := create.Validate(); err != nil {
		return nil, err
	}
	return create, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// maxSheetName is Excel's worksheet name limit, in characters.
const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// sheetName returns a valid worksheet name for a course.
func sheetName(course string) string {
	name := strings.Trim(sheetNameReplacer.Replace(models.NormalizeCourse(course)), "'")
	if name == "" {
		return "Feedback"
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	return name
}
