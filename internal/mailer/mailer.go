package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     string
	From     string
	Password string
}

// SendTeamRosterEmail notifies a temple admin that a team roster was
// created or updated for an event.
func SendTeamRosterEmail(log *zerolog.Logger, cfg Config, eventName, action, recipientEmail string, memberNames []string) error {
	var subject string
	switch action {
	case "created":
		subject = fmt.Sprintf("Team registered for %s", eventName)
	case "updated":
		subject = fmt.Sprintf("Team roster updated for %s", eventName)
	default:
		subject = fmt.Sprintf("Team registration notice for %s", eventName)
	}

	body := fmt.Sprintf(
		"Hello,\n\nThe team roster for the event \"%s\" was %s.\n\nCurrent roster:\n- %s\n",
		eventName, action, strings.Join(memberNames, "\n- "),
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		cfg.From, recipientEmail, subject, body,
	)

	addr := cfg.Host + ":" + cfg.Port
	auth := smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Host)

	if err := smtp.SendMail(addr, auth, cfg.From, []string{recipientEmail}, []byte(msg)); err != nil {
		log.Warn().Msgf("failed to send email to %s: %v", recipientEmail, err)
		return fmt.Errorf("send email: %w", err)
	}

	log.Info().Msgf("roster email sent to %s (action: %s)", recipientEmail, action)
	return nil
}
