package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/saldanamusic/splitsheets/internal/models"
	"github.com/saldanamusic/splitsheets/internal/sanitize"
)

// SiteName appears in subjects and headers.
const SiteName = "Saldaña Music"

// MessageData holds the fields the email templates draw from. Not every
// message uses every field.
type MessageData struct {
	RecipientName string `json:"recipientName,omitempty"`
	SheetTitle    string `json:"sheetTitle,omitempty"`
	ActorName     string `json:"actorName,omitempty"`
	ActionURL     string `json:"actionUrl,omitempty"`
	Code          string `json:"code,omitempty"`
	ExpiresIn     string `json:"expiresIn,omitempty"`
	DocumentHash  string `json:"documentHash,omitempty"`
}

type content struct {
	Subject   string
	Heading   string
	Lines     []string
	Code      string
	ActionURL string
	Action    string
}

// Build renders the message for kind.
func Build(kind models.NotificationKind, to string, data MessageData) (Email, error) {
	data = clean(data)
	var c content

	switch kind {
	case models.NotifyWelcome:
		c = content{
			Subject: fmt.Sprintf("Your split sheet \"%s\" was created", data.SheetTitle),
			Heading: "Split sheet created",
			Lines: []string{
				fmt.Sprintf("Hi %s,", greeting(data.RecipientName)),
				fmt.Sprintf("Your split sheet \"%s\" has been saved as a draft.", data.SheetTitle),
				"When the percentages are final, start the signature process to notify every collaborator.",
			},
			ActionURL: data.ActionURL,
			Action:    "Open split sheet",
		}
	case models.NotifySignatureRequest:
		c = content{
			Subject: fmt.Sprintf("Signature requested: %s", data.SheetTitle),
			Heading: "Your signature is requested",
			Lines: []string{
				fmt.Sprintf("Hi %s,", greeting(data.RecipientName)),
				fmt.Sprintf("%s has asked you to review and sign the split sheet \"%s\".", data.ActorName, data.SheetTitle),
			},
			ActionURL: data.ActionURL,
			Action:    "Review and sign",
		}
	case models.NotifyPasswordReset:
		c = content{
			Subject: fmt.Sprintf("Your %s password reset code", SiteName),
			Heading: "Password reset",
			Lines: []string{
				"Use this code to reset your password:",
				fmt.Sprintf("This code expires in %s.", data.ExpiresIn),
				"If you did not request this code, you can safely ignore this email.",
			},
			Code: data.Code,
		}
	case models.NotifyCompletion:
		c = content{
			Subject: fmt.Sprintf("Split sheet completed: %s", data.SheetTitle),
			Heading: "All collaborators have signed",
			Lines: []string{
				fmt.Sprintf("Hi %s,", greeting(data.RecipientName)),
				fmt.Sprintf("Every collaborator has signed \"%s\". The finalized document is available for download.", data.SheetTitle),
				fmt.Sprintf("Document fingerprint (SHA-256): %s", data.DocumentHash),
			},
			ActionURL: data.ActionURL,
			Action:    "Download document",
		}
	case models.NotifyInvite:
		c = content{
			Subject: fmt.Sprintf("You were added to \"%s\"", data.SheetTitle),
			Heading: "You have been added to a split sheet",
			Lines: []string{
				fmt.Sprintf("Hi %s,", greeting(data.RecipientName)),
				fmt.Sprintf("%s added you as a collaborator on \"%s\".", data.ActorName, data.SheetTitle),
				"You will receive a signature request once the split is final.",
			},
			ActionURL: data.ActionURL,
			Action:    "View split sheet",
		}
	default:
		return Email{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	htmlBody, err := renderHTML(c)
	if err != nil {
		return Email{}, err
	}

	return Email{
		To:       to,
		Subject:  c.Subject,
		TextBody: renderText(c),
		HTMLBody: htmlBody,
	}, nil
}

func clean(d MessageData) MessageData {
	return MessageData{
		RecipientName: sanitize.Text(d.RecipientName),
		SheetTitle:    sanitize.Text(d.SheetTitle),
		ActorName:     sanitize.Text(d.ActorName),
		ActionURL:     strings.TrimSpace(d.ActionURL),
		Code:          sanitize.Text(d.Code),
		ExpiresIn:     sanitize.Text(d.ExpiresIn),
		DocumentHash:  sanitize.Text(d.DocumentHash),
	}
}

func greeting(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

func renderText(c content) string {
	var buf bytes.Buffer
	for _, line := range c.Lines {
		buf.WriteString(line + "\n\n")
	}
	if c.Code != "" {
		buf.WriteString("    " + c.Code + "\n\n")
	}
	if c.ActionURL != "" {
		buf.WriteString(c.Action + ": " + c.ActionURL + "\n\n")
	}
	buf.WriteString("-- " + SiteName + "\n")
	return buf.String()
}

var layout = template.Must(template.New("email").Parse(layoutHTML))

func renderHTML(c content) (string, error) {
	var buf bytes.Buffer
	data := struct {
		content
		SiteName string
	}{c, SiteName}
	if err := layout.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

const layoutHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Subject}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 520px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 22px; font-weight: 600; color: #111827;">{{.SiteName}}</h1>
              <p style="margin: 8px 0 0; font-size: 16px; color: #4b5563;">{{.Heading}}</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              {{range .Lines}}<p style="margin: 0 0 16px; font-size: 15px; color: #374151; line-height: 1.5;">{{.}}</p>
              {{end}}
              {{if .Code}}<div style="background-color: #f3f4f6; border-radius: 8px; padding: 20px; text-align: center; margin-bottom: 16px;">
                <span style="font-size: 30px; font-weight: 700; letter-spacing: 8px; color: #1f2937; font-family: 'Courier New', monospace;">{{.Code}}</span>
              </div>{{end}}
              {{if .ActionURL}}<p style="text-align: center; margin: 24px 0 0;">
                <a href="{{.ActionURL}}" style="display: inline-block; padding: 12px 24px; background-color: #111827; color: #ffffff; text-decoration: none; border-radius: 6px; font-weight: 600;">{{.Action}}</a>
              </p>{{end}}
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`
