package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/tasko/internal/models"
	"gorm.io/gorm"
)

type index struct {
	table   interface{}
	name    string
	columns string
}

// AddIndexes adds the composite indexes used by list and report queries
func AddIndexes(db *gorm.DB) error {
	indexes := []index{
		// Task list filters and board grouping
		{&models.Task{}, "idx_tasks_project_status", "project_id, status"},
		{&models.Task{}, "idx_tasks_project_assignee", "project_id, assigned_to"},
		{&models.Task{}, "idx_tasks_team_id", "team_id"},
		{&models.Task{}, "idx_tasks_due_date", "due_date"},

		// Membership lookups by user
		{&models.ProjectMember{}, "idx_project_members_user_status", "user_id, status"},
		{&models.TeamMember{}, "idx_team_members_user_id", "user_id"},

		// Inbox
		{&models.Notification{}, "idx_notifications_user_read", "user_id, is_read"},
		{&models.Activity{}, "idx_activities_project_created", "project_id, created_at"},
		{&models.Message{}, "idx_messages_conversation_id", "conversation_id, id"},
		{&models.ConversationParticipant{}, "idx_conversation_participants_user_id", "user_id"},
	}

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			logrus.WithField("index", idx.name).Debug("Index already exists, skipping")
			continue
		}

		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(idx.table); err != nil {
			return fmt.Errorf("failed to resolve table for index %s: %w", idx.name, err)
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, stmt.Schema.Table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		logrus.WithFields(logrus.Fields{"index": idx.name, "table": stmt.Schema.Table}).Info("Created index")
	}

	return nil
}
