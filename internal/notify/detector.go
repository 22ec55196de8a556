package notify

import (
	"fmt"
	"html"
	"slices"
	"strings"
	"time"

	"taskboard/internal/models"
)

// Field names as they appear in update summaries.
const (
	FieldTitle       = "title"
	FieldStatus      = "status"
	FieldDescription = "description"
	FieldDueDate     = "due date"
	FieldAssignees   = "assignees"
	FieldOwner       = "owner"
)

const noChangesSummary = "Task updated with no field changes"

// importantFields are the fields whose change alone justifies a notification.
// An owner change is reported in the summary but never makes an update important.
var importantFields = map[string]bool{
	FieldTitle:       true,
	FieldStatus:      true,
	FieldDescription: true,
	FieldDueDate:     true,
	FieldAssignees:   true,
}

// Diff lists the fields that differ between old and updated, in fixed order.
func Diff(old, updated *models.TaskSnapshot) []string {
	var changed []string
	if old.Title != updated.Title {
		changed = append(changed, FieldTitle)
	}
	if old.Status != updated.Status {
		changed = append(changed, FieldStatus)
	}
	if !equalOptionalString(old.Description, updated.Description) {
		changed = append(changed, FieldDescription)
	}
	if !equalOptionalTime(old.DueAt, updated.DueAt) {
		changed = append(changed, FieldDueDate)
	}
	if !equalSet(old.Assignees, updated.Assignees) {
		changed = append(changed, FieldAssignees)
	}
	if old.Owner != updated.Owner {
		changed = append(changed, FieldOwner)
	}
	return changed
}

// Classify renders the notification text for an event and reports whether it is worth
// sending. Created and Deleted are always important. The function is pure.
func Classify(event models.ChangeEvent) (string, bool) {
	switch event.Kind {
	case models.ChangeCreated:
		return fmt.Sprintf("New task created: %s", title(event.New)), true
	case models.ChangeDeleted:
		return fmt.Sprintf("Task deleted: %s", title(event.Old)), true
	case models.ChangeUpdated:
		if event.Old == nil || event.New == nil {
			return noChangesSummary, false
		}
		changed := Diff(event.Old, event.New)
		if len(changed) == 0 {
			return noChangesSummary, false
		}
		important := false
		for _, f := range changed {
			if importantFields[f] {
				important = true
				break
			}
		}
		return fmt.Sprintf("Task '%s' updated: %s changed", title(event.New), strings.Join(changed, ", ")), important
	default:
		return "", false
	}
}

func title(s *models.TaskSnapshot) string {
	if s == nil {
		return ""
	}
	return html.EscapeString(s.Title)
}

func equalOptionalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalOptionalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalSet(a, b []string) bool {
	x := dedupeSorted(a)
	y := dedupeSorted(b)
	return slices.Equal(x, y)
}

func dedupeSorted(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
