package service

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/roadbook/planner-api/internal/core/domain"
)

// Links builds the front-end URLs embedded in outgoing mails.
type Links struct {
	BaseURL string
}

func (l Links) ValidateEmail(token string) string {
	return l.withToken("/validate-email", token)
}

func (l Links) ResetPassword(token string) string {
	return l.withToken("/reset-password", token)
}

func (l Links) Invitation(token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/invitation/" + url.PathEscape(token)
}

func (l Links) withToken(path, token string) string {
	return strings.TrimRight(l.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func validationMail(to, username, link string) domain.Mail {
	return domain.Mail{
		To:      to,
		Subject: "Confirm your email address",
		Text:    fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening:\n%s\n", username, link),
		HTML:    fmt.Sprintf(`<p>Hi %s,</p><p><a href="%s">Confirm your email address</a></p>`, html.EscapeString(username), link),
	}
}

func resetMail(to, link string) domain.Mail {
	return domain.Mail{
		To:      to,
		Subject: "Reset your password",
		Text:    fmt.Sprintf("Someone asked to reset your password. If it was you, open:\n%s\n", link),
		HTML:    fmt.Sprintf(`<p>Someone asked to reset your password.</p><p><a href="%s">Choose a new password</a></p>`, link),
	}
}

func invitationMail(to, message, link string) domain.Mail {
	text := "You have been invited to collaborate on a travel plan.\n"
	body := "<p>You have been invited to collaborate on a travel plan.</p>"
	if message != "" {
		text += "\n" + message + "\n"
		body += "<blockquote>" + html.EscapeString(message) + "</blockquote>"
	}
	return domain.Mail{
		To:      to,
		Subject: "You are invited to a travel plan",
		Text:    text + "\nAccept the invitation: " + link + "\n",
		HTML:    body + fmt.Sprintf(`<p><a href="%s">Accept the invitation</a></p>`, link),
	}
}
