package utils

import (
	"errors"
	"fmt"
	"net/smtp"
	"sort"
	"strings"
)

var ErrEmailNotConfigured = errors.New("email configuration not set")

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #2E7D32; margin: 0;">%s</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
		</div>
	</div>
</body>
</html>
`

type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Mailer struct {
	From        string
	Password    string
	Host        string
	Port        string
	CompanyName string
	BaseURL     string

	send SendFunc
}

func NewMailer(from, password, host, port, companyName, baseURL string) *Mailer {
	return &Mailer{
		From:        from,
		Password:    password,
		Host:        host,
		Port:        port,
		CompanyName: companyName,
		BaseURL:     baseURL,
		send:        smtp.SendMail,
	}
}

// WithSender swaps the SMTP transport.
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	m.send = send
	return m
}

func (m *Mailer) Configured() bool {
	return m != nil && m.From != "" && m.Password != "" && m.Host != "" && m.Port != ""
}

func (m *Mailer) Send(to []string, subject, body string) error {
	if !m.Configured() {
		return ErrEmailNotConfigured
	}

	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", m.CompanyName, m.From),
		"To":           strings.Join(to, ","),
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
		"X-Mailer":     m.CompanyName + "-Mailer",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var message strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&message, "%s: %s\r\n", k, headers[k])
	}
	message.WriteString("\r\n" + body)

	auth := smtp.PlainAuth("", m.From, m.Password, m.Host)
	return m.send(m.Host+":"+m.Port, auth, m.From, to, []byte(message.String()))
}

func (m *Mailer) wrap(inner string) string {
	return fmt.Sprintf(emailHeader, m.CompanyName) + inner + emailFooter
}

func (m *Mailer) SendPasswordResetEmail(to, otp string) error {
	subject := "Password Reset Code - " + m.CompanyName
	body := m.wrap(fmt.Sprintf(`
		<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
			<h1 style="color: #2c3e50; text-align: center;">Reset Your Password</h1>
			<p>Use the code below to reset your password. It expires in %d minutes.</p>
			<p style="font-size: 28px; letter-spacing: 6px; text-align: center;"><strong>%s</strong></p>
			<p>If you did not request this, you can ignore this email.</p>
		</div>`, int(OTPExpiration.Minutes()), otp))

	return m.Send([]string{to}, subject, body)
}

// SendNotificationEmail renders a short titled message with a link back to the app.
func (m *Mailer) SendNotificationEmail(to, title, text, path string) error {
	body := m.wrap(fmt.Sprintf(`
		<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
			<h1 style="color: #2c3e50; text-align: center;">%s</h1>
			<p>%s</p>
			<div style="text-align: center; margin: 30px 0;">
				<a href="%s%s" style="background-color: #2E7D32; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Open %s</a>
			</div>
		</div>`, title, text, m.BaseURL, path, m.CompanyName))

	return m.Send([]string{to}, title+" - "+m.CompanyName, body)
}
