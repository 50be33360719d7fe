package email

import (
	"fmt"
	"html"

	"github.com/jordanlanch/assetdesk/pkg/domain"
)

const productName = "AssetDesk"

type message struct {
	subject   string
	html      string
	plainText string
}

func welcomeMessage(name, organization, baseURL string) message {
	subject := fmt.Sprintf("Welcome to %s - %s", productName, organization)

	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Welcome to %s!</h2>
			<p>Hi %s,</p>
			<p>Your account has been created for <strong>%s</strong>.</p>
			<p>You can now start managing your assets and tracking maintenance tickets.</p>
			<p><a href="%s/dashboard" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Go to Dashboard</a></p>
			<p>Best regards,<br>The %s Team</p>
		</body>
		</html>
	`, productName, html.EscapeString(name), html.EscapeString(organization), baseURL, productName)

	plainText := fmt.Sprintf(`Hi %s,

Your account has been created for %s.
You can now start managing your assets and tracking maintenance tickets.

Go to your dashboard: %s/dashboard

Best regards,
The %s Team
`, name, organization, baseURL, productName)

	return message{subject: subject, html: body, plainText: plainText}
}

func ticketMessage(adminName string, t domain.TicketNotice, baseURL string) message {
	subject := fmt.Sprintf("New Ticket Created - %s", t.AssetName)

	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>New Maintenance Ticket</h2>
			<p>Hi %s,</p>
			<p>A new ticket has been created by <strong>%s</strong>.</p>
			<div style="background-color: #f3f4f6; padding: 20px; border-radius: 8px; margin: 20px 0;">
				<p><strong>Ticket:</strong> #%d %s</p>
				<p><strong>Asset:</strong> %s (%s)</p>
				<p><strong>Description:</strong></p>
				<p style="padding: 10px; background-color: white; border-radius: 4px;">%s</p>
			</div>
			<p><a href="%s/tickets" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">View Ticket</a></p>
			<p>Please review this ticket as soon as possible.</p>
			<p>Best regards,<br>%s Notifications</p>
		</body>
		</html>
	`, html.EscapeString(adminName), html.EscapeString(t.ReporterName),
		t.TicketID, html.EscapeString(t.Title),
		html.EscapeString(t.AssetName), html.EscapeString(t.SerialNumber),
		html.EscapeString(t.Description), baseURL, productName)

	plainText := fmt.Sprintf(`Hi %s,

A new ticket has been created by %s.

Ticket: #%d %s
Asset: %s (%s)
Description:
%s

View tickets: %s/tickets

Best regards,
%s Notifications
`, adminName, t.ReporterName, t.TicketID, t.Title, t.AssetName, t.SerialNumber, t.Description, baseURL, productName)

	return message{subject: subject, html: body, plainText: plainText}
}

func subscriptionMessage(name, planName, baseURL string) message {
	subject := fmt.Sprintf("Subscription Confirmed - %s Plan", planName)

	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Subscription Confirmed</h2>
			<p>Hi %s,</p>
			<p>Your subscription to the <strong>%s</strong> plan has been activated.</p>
			<p><a href="%s/billing" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Manage Subscription</a></p>
			<p>Thanks,<br>The %s Team</p>
		</body>
		</html>
	`, html.EscapeString(name), html.EscapeString(planName), baseURL, productName)

	plainText := fmt.Sprintf(`Hi %s,

Your subscription to the %s plan has been activated.

Manage your subscription: %s/billing

Thanks,
The %s Team
`, name, planName, baseURL, productName)

	return message{subject: subject, html: body, plainText: plainText}
}
