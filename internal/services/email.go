package services

import (
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/pkg/logger"
)

type EmailService struct {
	config *config.SMTPConfig
	loc    *time.Location
}

func NewEmailService(cfg *config.SMTPConfig, loc *time.Location) *EmailService {
	if loc == nil {
		loc = time.UTC
	}
	return &EmailService{config: cfg, loc: loc}
}

func (s *EmailService) IsEnabled() bool {
	return s.config != nil && s.config.Enabled && s.config.Host != ""
}

// SendMeetingNotification mails recipients about a meeting change. It is a
// no-op when SMTP is not configured.
func (s *EmailService) SendMeetingNotification(task *MeetingTask, recipients []string) error {
	if !s.IsEnabled() || len(recipients) == 0 {
		return nil
	}
	return s.sendEmail(recipients, emailSubject(task), s.buildEmailBody(task))
}

func emailSubject(task *MeetingTask) string {
	switch task.Type {
	case TaskTypeMeetingInvited:
		return fmt.Sprintf("Invitation: %s", task.Title)
	case TaskTypeMeetingUpdated:
		return fmt.Sprintf("Updated: %s", task.Title)
	case TaskTypeMeetingCancelled:
		return fmt.Sprintf("Cancelled: %s", task.Title)
	case TaskTypeMeetingResponded:
		return fmt.Sprintf("Invitation %s: %s", task.Status, task.Title)
	case TaskTypeMeetingReminder:
		return fmt.Sprintf("Reminder: %s starts soon", task.Title)
	default:
		return task.Title
	}
}

func (s *EmailService) buildEmailBody(task *MeetingTask) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(emailSubject(task))))
	sb.WriteString("<table style=\"border-collapse: collapse; margin-bottom: 20px;\">")

	rows := []struct{ label, value string }{
		{"Meeting", task.Title},
		{"Starts", task.StartTime.In(s.loc).Format("Mon, 02 Jan 2006 15:04 MST")},
		{"Duration", fmt.Sprintf("%d minutes", task.Duration)},
	}
	if task.Status != "" {
		rows = append(rows, struct{ label, value string }{"Response", task.Status})
	}

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("<tr><td style=\"padding: 8px; border: 1px solid #ddd; font-weight: bold;\">%s</td><td style=\"padding: 8px; border: 1px solid #ddd;\">%s</td></tr>", r.label, html.EscapeString(r.value)))
	}
	sb.WriteString("</table>")
	sb.WriteString("</body></html>")

	return sb.String()
}

func (s *EmailService) sendEmail(to []string, subject, body string) error {
	from := s.config.From
	if from == "" {
		from = s.config.Username
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("From: %s\r\n", from))
	message.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ",")))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	var err error
	if s.config.UseTLS {
		err = s.sendEmailTLS(addr, auth, from, to, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, to, []byte(message.String()))
	}

	if err != nil {
		logger.Errorf("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent %q to %d recipient(s)", subject, len(to))
	return nil
}

func (s *EmailService) sendEmailTLS(addr string, auth smtp.Auth, from string, to []string, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	if _, err = w.Write([]byte(message)); err != nil {
		return err
	}

	return w.Close()
}
