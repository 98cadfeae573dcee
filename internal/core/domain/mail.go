package domain

// Mail is an outbound message handed to the mail dispatcher.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}
