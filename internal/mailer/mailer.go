package mailer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/C4T-BuT-S4D/vouch/internal/config"
	"github.com/C4T-BuT-S4D/vouch/internal/verify"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Mailer sends plain text email through a Mailgun-compatible HTTP API.
type Mailer struct {
	from   string
	domain string
	client *resty.Client
}

func New(cfg *config.Config) *Mailer {
	return &Mailer{
		from:   cfg.MailFrom,
		domain: cfg.MailDomain,
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(cfg.MailAPIURL, "/")).
			SetBasicAuth("api", cfg.MailAPIKey),
	}
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send delivers the email. Failures the recipient could fix, such as a
// rejected address, and transient transport failures are reported as
// verify.ErrDeliveryFault.
func (m *Mailer) Send(ctx context.Context, recipient, subject, body string) error {
	logrus.Debugf("sending email to %s", recipient)

	resp, err := m.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"from":    m.from,
			"to":      recipient,
			"subject": subject,
			"text":    body,
		}).
		SetResult(&sendResponse{}).
		Post(fmt.Sprintf("/v3/%s/messages", m.domain))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("sending request: %w", ctx.Err())
		}
		return fmt.Errorf("sending request: %v: %w", err, verify.ErrDeliveryFault)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
		logrus.Infof("email %s sent to %s", resp.Result().(*sendResponse).ID, recipient)
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("mail api rejected credentials: %d %s", code, string(resp.Body()))
	case code >= 400:
		return fmt.Errorf("unexpected status code: %d %s: %w", code, string(resp.Body()), verify.ErrDeliveryFault)
	default:
		return fmt.Errorf("unexpected status code: %d %s", code, string(resp.Body()))
	}
}
