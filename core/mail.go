package core

import (
	"bytes"
	htmltmpl "html/template"
	"net/mail"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/balozi/fs"
)

var (
	textTemplates *texttmpl.Template
	htmlTemplates *htmltmpl.Template
	tmplInit      sync.Once
)

type (
	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is the root object available to email templates.
	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func loadTemplates() {
	tmplInit.Do(func() {
		textTemplates = texttmpl.Must(texttmpl.ParseFS(appfs.FS, "templates/*.txt"))
		htmlTemplates = htmltmpl.Must(htmltmpl.ParseFS(appfs.FS, "templates/*.html"))
	})
}

func (m *EmailMessage) contextData(conf *Config) ContextData {
	return ContextData{
		FrontendBaseURL: conf.FrontendBaseURL,
		Data:            m.TemplateData,
	}
}

// Render renders the message's text and HTML contents from its template (if any).
func (m *EmailMessage) Render(conf *Config) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}
	loadTemplates()

	var buff bytes.Buffer
	if tmpl := textTemplates.Lookup(m.TemplateName + ".txt"); tmpl != nil {
		if err := tmpl.Execute(&buff, m.contextData(conf)); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buff.String()
	}
	if tmpl := htmlTemplates.Lookup(m.TemplateName + ".html"); tmpl != nil {
		buff.Reset()
		if err := tmpl.Execute(&buff, m.contextData(conf)); err != nil {
			return errors.Wrapf(err, "rendering %s.html", m.TemplateName)
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool {
	return len(m.To) > 0 || len(m.Cc) > 0 || len(m.Bcc) > 0
}

func (m *EmailMessage) HasContent() bool {
	return m.TextContent != "" || m.HTMLContent != ""
}

func (m *EmailMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}
