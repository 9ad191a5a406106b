package mailer

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

const magicLinkSubject = "Your sign-in link"

var magicLinkTemplate = template.Must(template.New("magic-link").Parse(
	`Hi{{if .Name}} {{.Name}}{{end}},

Use the link below to sign in. It expires in {{.ValidFor}} and can only be used once.

{{.URL}}

If you did not request this email you can ignore it.
`))

type MagicLinkEmail struct {
	To        string
	Name      string
	URL       string
	ExpiresAt time.Time
}

// RenderMagicLink builds the message for a link, measuring validity from now.
func RenderMagicLink(e MagicLinkEmail, now time.Time) (Message, error) {
	validFor := e.ExpiresAt.Sub(now).Round(time.Minute)
	if validFor < time.Minute {
		validFor = time.Minute
	}

	var body strings.Builder
	err := magicLinkTemplate.Execute(&body, struct {
		Name     string
		URL      string
		ValidFor string
	}{
		Name:     e.Name,
		URL:      e.URL,
		ValidFor: formatMinutes(validFor),
	})
	if err != nil {
		return Message{}, err
	}

	return Message{To: e.To, Subject: magicLinkSubject, Text: body.String()}, nil
}

func formatMinutes(d time.Duration) string {
	m := int(d.Minutes())
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
