package alerts

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"wheyhunter/pkg/models"
	"wheyhunter/pkg/pricing"
)

// Mailer delivers price alert notifications.
type Mailer interface {
	SendPriceAlert(alert Alert, deal models.Deal, total float64) error
}

// SendGridMailer sends alert emails through SendGrid. Without an API
// key it degrades to a logged no-op, so development setups never need
// credentials.
type SendGridMailer struct {
	APIKey    string
	FromName  string
	FromEmail string
}

func (m *SendGridMailer) SendPriceAlert(alert Alert, deal models.Deal, total float64) error {
	if m.APIKey == "" || m.FromEmail == "" {
		log.Printf("Alerts: email to %s skipped, mailer not configured", alert.Email)
		return nil
	}

	currentPrice := pricing.FormatPrice(&total, deal.Price.Currency)
	target := alert.TargetPrice
	targetPrice := pricing.FormatPrice(&target, deal.Price.Currency)

	subject := fmt.Sprintf("Baisse de prix détectée pour %s", deal.Title)
	text := fmt.Sprintf(
		"Bonne nouvelle ! Nous avons trouvé %s à %s chez %s.\n\nVotre alerte était configurée pour être notifiée sous %s.",
		deal.Title, currentPrice, deal.Vendor, targetPrice,
	)
	if deal.Link != "" {
		text += "\n\nVoir l'offre : " + deal.Link
	}

	from := mail.NewEmail(m.FromName, m.FromEmail)
	to := mail.NewEmail("", alert.Email)
	message := mail.NewSingleEmail(from, subject, to, text, "")

	response, err := sendgrid.NewSendClient(m.APIKey).Send(message)
	if err != nil {
		log.Printf("Alerts: failed to send email to %s: %v", alert.Email, err)
		return err
	}
	if response.StatusCode >= 400 {
		log.Printf("Alerts: SendGrid status %d: %s", response.StatusCode, response.Body)
		return fmt.Errorf("alerts: send failed with status %d", response.StatusCode)
	}
	return nil
}
