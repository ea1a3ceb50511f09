package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var (
	joinHouseholdHTML = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/layout.html", "templates/join_household.html"))
	joinHouseholdText = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/join_household.txt"))
	verifyEmailHTML   = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/layout.html", "templates/verify_email.html"))
	verifyEmailText   = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/verify_email.txt"))
)

type JoinHouseholdData struct {
	HouseholdName string
	InviteeEmail  string
	Role          string
	URL           string
	ExpiresIn     string
}

// JoinHousehold renders the invitation e-mail sent to a prospective member.
func JoinHousehold(to string, d JoinHouseholdData) (Message, error) {
	subject := fmt.Sprintf(`Join "%s" household`, d.HouseholdName)
	return render(to, subject, joinHouseholdHTML, joinHouseholdText, d)
}

type VerifyEmailData struct {
	UserName string
	URL      string
}

func VerifyEmail(to string, d VerifyEmailData) (Message, error) {
	return render(to, "Verify your email address 👀", verifyEmailHTML, verifyEmailText, d)
}

func render(to, subject string, html *htmltemplate.Template, text *texttemplate.Template, data any) (Message, error) {
	var hb bytes.Buffer
	if err := html.ExecuteTemplate(&hb, "layout", struct {
		Title string
		Data  any
	}{subject, data}); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}

	var tb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}

	return Message{To: to, Subject: subject, HTML: hb.String(), Text: tb.String()}, nil
}
