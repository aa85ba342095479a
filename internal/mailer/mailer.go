package mailer

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Mailer sends transactional order emails over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *logrus.Logger
}

func New(host string, port int, username, password, from string, logger *logrus.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		logger: logger,
	}
}

// SendOrderReceipt mails the order confirmation. Callers run this off
// the request path; a dead SMTP server must never slow an order down.
func (m *Mailer) SendOrderReceipt(to, name, restaurant string, amount, deliveryFee float64) error {
	message := gomail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", fmt.Sprintf("Your order from %s is confirmed!", restaurant))
	message.SetBody("text/html", receiptBody(name, restaurant, amount, deliveryFee))

	if err := m.dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("failed to send receipt email: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"to":         to,
		"restaurant": restaurant,
	}).Info("Receipt email sent")
	return nil
}

func receiptBody(name, restaurant string, amount, deliveryFee float64) string {
	return fmt.Sprintf(`<h2>Thanks for your order, %s!</h2>
<p>Your order from <b>%s</b> has been placed and paid.</p>
<table>
  <tr><td>Order amount</td><td>%.2f</td></tr>
  <tr><td>Delivery fee</td><td>%.2f</td></tr>
  <tr><td><b>Total paid</b></td><td><b>%.2f</b></td></tr>
</table>
<p>We'll let you know as soon as it's on its way.</p>`,
		name, restaurant, amount, deliveryFee, amount+deliveryFee)
}
