package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/tasko/internal/database"
	"github.com/yukikurage/tasko/internal/models"
	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Topic
	}
	return out
}

type sentMail struct {
	To   string
	Name string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendTeamInvitation(to, teamName, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Name: teamName})
	return nil
}

func (m *recordingMailer) SendProjectInvitation(to, projectName, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Name: projectName})
	return nil
}

type testEnv struct {
	db        *gorm.DB
	store     repository.Store
	publisher *recordingPublisher
	mailer    *recordingMailer
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, db.AutoMigrate(database.Models...))

	return &testEnv{
		db:        db,
		store:     repository.NewStore(db),
		publisher: &recordingPublisher{},
		mailer:    &recordingMailer{},
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, FullName: email, PasswordHash: "x"}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createProject(t *testing.T, owner *models.User) *models.Project {
	t.Helper()
	svc := NewProjectService(e.store, e.publisher, e.mailer)
	project, err := svc.CreateProject(context.Background(), owner.ID, CreateProjectInput{Name: fmt.Sprintf("project-%d", owner.ID)})
	require.NoError(t, err)
	return project
}

// addMember inserts an accepted project membership directly
func (e *testEnv) addMember(t *testing.T, projectID uint64, user *models.User, role models.ProjectRole) {
	t.Helper()
	now := time.Now()
	require.NoError(t, e.db.Create(&models.ProjectMember{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      role,
		Status:    models.MembershipAccepted,
		JoinedAt:  &now,
	}).Error)
}

func (e *testEnv) createTeam(t *testing.T, owner *models.User, projectID *uint64, members ...*models.User) *models.Team {
	t.Helper()
	team := &models.Team{Name: "team", OwnerID: owner.ID, ProjectID: projectID}
	require.NoError(t, e.db.Omit("Members", "Owner").Create(team).Error)

	rows := []models.TeamMember{{TeamID: team.ID, UserID: owner.ID, Role: models.TeamRoleOwner, JoinedAt: time.Now()}}
	for _, m := range members {
		rows = append(rows, models.TeamMember{TeamID: team.ID, UserID: m.ID, Role: models.TeamRoleMember, JoinedAt: time.Now()})
	}
	require.NoError(t, e.db.Omit("Team", "User").Create(&rows).Error)
	return team
}

func (e *testEnv) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func u64(v uint64) *uint64 { return &v }
