package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/models"

	"github.com/rs/zerolog"
)

const summaryDateLayout = "Jan 02, 2006"

// BoardService renders a member's board summary and pushes it to their bound chat.
type BoardService struct {
	repo     domain.TaskRepository
	bindings domain.BindingStore
	sender   domain.Sender
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewBoardService(repo domain.TaskRepository, bindings domain.BindingStore, sender domain.Sender, logger *zerolog.Logger) *BoardService {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &BoardService{repo: repo, bindings: bindings, sender: sender, logger: logger, now: time.Now}
}

// SendSummary builds the summary for username and sends it if the user has a bound chat.
// Delivery problems are logged; the summary text is returned either way.
func (s *BoardService) SendSummary(ctx context.Context, username string) (string, error) {
	tasks, err := s.repo.GetTasksByMember(ctx, username)
	if err != nil {
		return "", err
	}
	text := BuildSummary(username, tasks, s.now())

	if s.bindings == nil || s.sender == nil {
		return text, nil
	}
	addr, ok, err := s.bindings.GetBinding(ctx, username)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("binding lookup failed")
		return text, nil
	}
	if !ok {
		return text, nil
	}
	if err := s.sender.Send(ctx, addr, text); err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to send board summary")
	}
	return text, nil
}

// BuildSummary renders the board of username from tasks as of now.
func BuildSummary(username string, tasks []*models.Task, now time.Time) string {
	counts := make(map[models.TaskStatus]int)
	assigned, owned := 0, 0
	for _, t := range tasks {
		counts[t.Status]++
		if t.IsAssignee(username) {
			assigned++
		}
		if t.Owner == username {
			owned++
		}
	}

	var b strings.Builder
	b.WriteString("📋 Board Summary\n\n")

	b.WriteString("📊 Overall Status:\n")
	fmt.Fprintf(&b, "• Todo: %d\n", counts[models.StatusTodo])
	fmt.Fprintf(&b, "• In Progress: %d\n", counts[models.StatusInProgress])
	fmt.Fprintf(&b, "• Done: %d\n\n", counts[models.StatusDone])

	b.WriteString("👤 Your Tasks:\n")
	fmt.Fprintf(&b, "• Assigned to you: %d\n", assigned)
	fmt.Fprintf(&b, "• Created by you: %d\n\n", owned)

	b.WriteString("Your Task Details:\n")
	writeStatusSection(&b, "📌 To Do:", tasks, username, models.StatusTodo, "Due")
	writeStatusSection(&b, "🔄 In Progress:", tasks, username, models.StatusInProgress, "Due")
	writeStatusSection(&b, "✅ Done:", tasks, username, models.StatusDone, "Completed before")

	fmt.Fprintf(&b, "⚠️ Urgent Tasks (Due within %d days):\n", models.UrgentWindowDays)
	urgent := 0
	for _, t := range tasks {
		if !t.HasMember(username) || t.DueAt == nil {
			continue
		}
		// whole days, truncated toward zero
		days := int64(t.DueAt.Sub(now) / (24 * time.Hour))
		if days < 0 || days > models.UrgentWindowDays {
			continue
		}
		urgent++
		fmt.Fprintf(&b, "• %s (Due: %s) - %s\n", html.EscapeString(t.Title), formatDue(*t.DueAt), daysLeft(days))
	}
	if urgent == 0 {
		b.WriteString("-\n")
	}
	b.WriteString("\n")
	return b.String()
}

func writeStatusSection(b *strings.Builder, header string, tasks []*models.Task, username string, status models.TaskStatus, dueLabel string) {
	b.WriteString(header)
	b.WriteString("\n")
	n := 0
	for _, t := range tasks {
		if t.Status != status || !t.HasMember(username) {
			continue
		}
		n++
		b.WriteString("• ")
		b.WriteString(html.EscapeString(t.Title))
		if t.DueAt != nil {
			fmt.Fprintf(b, " (%s: %s)", dueLabel, formatDue(*t.DueAt))
		}
		b.WriteString("\n")
	}
	if n == 0 {
		b.WriteString("-\n")
	}
	b.WriteString("\n")
}

func formatDue(t time.Time) string {
	return t.UTC().Format(summaryDateLayout)
}

func daysLeft(days int64) string {
	switch days {
	case 0:
		return "Due today!"
	case 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}
