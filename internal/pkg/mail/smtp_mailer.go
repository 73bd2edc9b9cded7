package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/env"
)

type smtpConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

func loadConfig() smtpConfig {
	cfg := smtpConfig{
		Host:     env.GetEnv("SMTP_HOST", ""),
		Port:     env.GetEnv("SMTP_PORT", "587"),
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		Sender:   env.GetEnv("SMTP_SENDER", ""),
	}
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
		log.Printf("SMTP_SENDER not set, using default sender: %s", cfg.Sender)
	}
	return cfg
}

// MaskAddress redacts an email address for log output, keeping the first
// character of the local part and the domain: "max@example.org" becomes
// "m***@example.org".
func MaskAddress(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

// SendMail sends one HTML email via SMTP. Without SMTP_HOST the mail is
// logged and dropped so local setups work without a mail server. Logs only
// ever carry the masked recipient.
func SendMail(to string, subject string, body string) error {
	cfg := loadConfig()
	if cfg.Host == "" {
		log.Printf("SMTP_HOST not set, dropping mail to %s (subject %q)", MaskAddress(to), subject)
		return nil
	}

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", cfg.Sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, cfg.Sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", MaskAddress(to), addr)
	}
	return err
}
