package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/mnuddindev/otakushelf/pkg/logger"
	"gopkg.in/gomail.v2"
)

// EmailConfig holds SMTP and app settings, passed in from app config.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	AppURL       string
	FromEmail    string
}

// Enabled reports whether an SMTP host has been configured.
func (c EmailConfig) Enabled() bool {
	return c.SMTPHost != ""
}

// BuildWelcomeEmail renders the welcome message for a freshly created account.
func BuildWelcomeEmail(config EmailConfig, email, username string) *gomail.Message {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Welcome to OtakuShelf</title>
    <style>
        body { font-family: 'Arial', sans-serif; background-color: #f4f4f4; color: #333; }
        .container { max-width: 600px; margin: 40px auto; background-color: #ffffff; border-radius: 8px; }
        .header { background-color: #e84a5f; padding: 20px; text-align: center; color: #ffffff; }
        .content { padding: 30px; line-height: 1.6; }
        .button { display: inline-block; padding: 12px 24px; background-color: #e84a5f; color: #ffffff; text-decoration: none; border-radius: 5px; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #777; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Welcome to OtakuShelf!</h1></div>
        <div class="content">
            <p>Hello %s,</p>
            <p>Your shelf is ready. Search for a series, add it to your watchlist and keep track of what you are watching.</p>
            <p style="text-align: center;"><a href="%s/watchlist" class="button">Open your watchlist</a></p>
            <p>If you did not sign up, please ignore this email.</p>
        </div>
        <div class="footer"><p>&copy; %d OtakuShelf</p></div>
    </div>
</body>
</html>
`, username, config.AppURL, time.Now().Year())

	textBody := fmt.Sprintf(`
Hello %s,

Your OtakuShelf account is ready. Open your watchlist at %s/watchlist

If you did not sign up, ignore this email.

The OtakuShelf Team
`, username, config.AppURL)

	msg := gomail.NewMessage()
	msg.SetHeader("From", config.FromEmail)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Welcome to OtakuShelf")
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)
	return msg
}

// SendWelcomeEmail delivers the welcome message. It is a no-op when SMTP is not configured.
func SendWelcomeEmail(ctx context.Context, config EmailConfig, email, username string, log *logger.Logger) error {
	if !config.Enabled() {
		return nil
	}

	dialer := gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.SMTPUsername, config.SMTPPassword)
	if err := dialer.DialAndSend(BuildWelcomeEmail(config, email, username)); err != nil {
		log.Warn(ctx).WithFields("email", email, "error", err).Logs("Failed to send welcome email")
		return NewInternalError("Failed to send welcome email", err)
	}

	log.Info(ctx).WithFields("email", email).Logs("Welcome email sent")
	return nil
}
