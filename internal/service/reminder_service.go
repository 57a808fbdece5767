package service

import (
	"context"
	"fmt"
	"time"

	"github.com/zanphear/planview/internal/domain"
	"github.com/zanphear/planview/internal/logger"
)

// ReminderService sends task.due notifications for tasks ending tomorrow.
type ReminderService struct {
	tasks         TaskStore
	notifications *NotificationService
	doneStatuses  []string
	loc           *time.Location
	now           func() time.Time
}

// NewReminderService computes "today" in loc, the zone the daily job is
// scheduled in. A nil loc means UTC and a nil clock means time.Now.
func NewReminderService(tasks TaskStore, notifications *NotificationService, doneStatuses []string, loc *time.Location, clock func() time.Time) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &ReminderService{tasks: tasks, notifications: notifications, doneStatuses: doneStatuses, loc: loc, now: clock}
}

// SendDueReminders notifies every assignee of an unfinished task due
// tomorrow. Recipients already reminded about a task today are skipped, so
// reruns on the same day send nothing new.
func (s *ReminderService) SendDueReminders(ctx context.Context) (int, error) {
	now := s.now().In(s.loc)
	today := domain.DateOf(now)
	tomorrow := today.AddDays(1)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	tasks, err := s.tasks.DueOn(ctx, tomorrow, s.doneStatuses)
	if err != nil {
		return 0, fmt.Errorf("load due tasks: %w", err)
	}

	sent := 0
	for _, t := range tasks {
		taskID := t.ID
		for _, u := range t.Assignees {
			already, err := s.notifications.SentSince(ctx, u.ID, t.ID, domain.NotificationTaskDue, startOfDay)
			if err != nil {
				logger.Warn("due reminder: lookup failed", "task_id", t.ID, "user_id", u.ID, "error", err)
				continue
			}
			if already {
				continue
			}
			if _, err := s.notifications.Notify(ctx, NotifyParams{
				RecipientID: u.ID,
				WorkspaceID: t.WorkspaceID,
				EventType:   domain.NotificationTaskDue,
				Title:       fmt.Sprintf("\"%s\" is due tomorrow", t.Name),
				TaskID:      &taskID,
			}); err != nil {
				logger.Warn("due reminder: notify failed", "task_id", t.ID, "user_id", u.ID, "error", err)
				continue
			}
			sent++
		}
	}
	logger.Info("due reminders sent", "date", tomorrow.String(), "tasks", len(tasks), "sent", sent)
	return sent, nil
}
