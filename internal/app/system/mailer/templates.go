// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// LinkEmailData holds data for the link-bearing email templates.
type LinkEmailData struct {
	SiteName  string
	Link      string
	ExpiresIn string // e.g., "24 hours"
}

// BuildConfirmationEmail creates the sign-up confirmation email.
func BuildConfirmationEmail(data LinkEmailData) Email {
	return Email{
		To:       "", // Set by caller
		Subject:  fmt.Sprintf("Confirm your %s account", data.SiteName),
		TextBody: buildText(data, "Confirm your email address by opening this link:", "If you did not create an account, you can safely ignore this email."),
		HTMLBody: buildHTML(data, "Confirm your email address", "Confirm email"),
	}
}

// BuildRecoveryEmail creates the password reset email.
func BuildRecoveryEmail(data LinkEmailData) Email {
	return Email{
		To:       "",
		Subject:  fmt.Sprintf("Reset your %s password", data.SiteName),
		TextBody: buildText(data, "Reset your password by opening this link:", "If you did not request a password reset, you can safely ignore this email."),
		HTMLBody: buildHTML(data, "Reset your password", "Reset password"),
	}
}

func buildText(data LinkEmailData, lead, footer string) string {
	var buf bytes.Buffer
	buf.WriteString(lead + "\n")
	buf.WriteString(data.Link + "\n\n")
	if data.ExpiresIn != "" {
		buf.WriteString(fmt.Sprintf("This link expires in %s.\n\n", data.ExpiresIn))
	}
	buf.WriteString(footer + "\n")
	return buf.String()
}

var linkTmpl = template.Must(template.New("link").Parse(linkHTMLTemplate))

func buildHTML(data LinkEmailData, heading, button string) string {
	var buf bytes.Buffer
	_ = linkTmpl.Execute(&buf, struct {
		LinkEmailData
		Heading string
		Button  string
	}{data, heading, button})
	return buf.String()
}

const linkHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Heading}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #003a63;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px; text-align: center;">
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151;">{{.Heading}}</p>
              <a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background-color: #003a63; color: #ffffff; text-decoration: none; font-size: 16px; border-radius: 6px;">{{.Button}}</a>
              {{if .ExpiresIn}}<p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af;">This link expires in {{.ExpiresIn}}.</p>{{end}}
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
