// Package mailer sends invitation e-mails over SMTP.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/tasko/internal/config"
	"gopkg.in/gomail.v2"
)

// Mailer sends transactional e-mails.
type Mailer interface {
	SendTeamInvitation(to, teamName, inviterName string) error
	SendProjectInvitation(to, projectName, inviterName string) error
}

var templates = map[string]*template.Template{
	"team_invitation": template.Must(template.New("team_invitation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>You have been invited to {{.Name}}</h2>
    <p>{{.Inviter}} invited you to join the team <strong>{{.Name}}</strong>.</p>
    <p><a href="{{.Link}}">Open your invitations</a> to accept or decline.</p>
    <p style="font-size: 12px; color: #7f8c8d;">&copy; {{.Year}} Task-O</p>
</body>
</html>`)),
	"project_invitation": template.Must(template.New("project_invitation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>You have been invited to {{.Name}}</h2>
    <p>{{.Inviter}} added you to the project <strong>{{.Name}}</strong>.</p>
    <p><a href="{{.Link}}">Open your invitations</a> to accept or decline.</p>
    <p style="font-size: 12px; color: #7f8c8d;">&copy; {{.Year}} Task-O</p>
</body>
</html>`)),
}

type invitationData struct {
	Name    string
	Inviter string
	Link    string
	Year    int
}

func render(name string, data interface{}) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("template '%s' not found", name)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("error executing template: %w", err)
	}
	return body.String(), nil
}

// SMTPMailer delivers mail through gomail.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string
}

// New returns an SMTPMailer, or a NoopMailer when no SMTP host is configured.
func New(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		return NoopMailer{}
	}
	return &SMTPMailer{
		dialer:  gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:    cfg.SMTPFrom,
		baseURL: cfg.PublicBaseURL,
	}
}

func (m *SMTPMailer) SendTeamInvitation(to, teamName, inviterName string) error {
	return m.send(to, "You have been invited to "+teamName, "team_invitation", invitationData{
		Name:    teamName,
		Inviter: inviterName,
		Link:    m.baseURL + "/invitations",
		Year:    time.Now().Year(),
	})
}

func (m *SMTPMailer) SendProjectInvitation(to, projectName, inviterName string) error {
	return m.send(to, "You have been invited to "+projectName, "project_invitation", invitationData{
		Name:    projectName,
		Inviter: inviterName,
		Link:    m.baseURL + "/invitations",
		Year:    time.Now().Year(),
	})
}

func (m *SMTPMailer) send(to, subject, tmpl string, data interface{}) error {
	body, err := render(tmpl, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}

	logrus.WithFields(logrus.Fields{"to": to, "template": tmpl}).Info("Email sent")
	return nil
}

// NoopMailer logs instead of sending.
type NoopMailer struct{}

func (NoopMailer) SendTeamInvitation(to, teamName, _ string) error {
	logrus.WithFields(logrus.Fields{"to": to, "team": teamName}).Debug("SMTP disabled, skipping team invitation email")
	return nil
}

func (NoopMailer) SendProjectInvitation(to, projectName, _ string) error {
	logrus.WithFields(logrus.Fields{"to": to, "project": projectName}).Debug("SMTP disabled, skipping project invitation email")
	return nil
}
