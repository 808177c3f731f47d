package core

import (
	"bytes"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolbus/assets"
)

const (
	emailTemplatesDir = "templates/email"
	textExt           = ".txt"
	htmlExt           = ".gohtml"
)

var (
	templates    map[string]map[string]executor // name -> ext -> template
	tmplInit     sync.Once
	errTemplates error
)

type (
	// executor is satisfied by both text and html templates.
	executor interface {
		Execute(w io.Writer, data interface{}) error
	}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // plain text, used instead of the text template

		TemplateName string // without extension
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is what the email templates are executed with.
	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// execute runs the template of m for ext. A missing template yields no content.
func (m *EmailMessage) execute(ext string, conf *Config) (string, error) {
	tmpl, ok := templates[m.TemplateName][ext]
	if !ok {
		return "", nil
	}
	var buf bytes.Buffer
	data := ContextData{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "executing %s%s", m.TemplateName, ext)
	}
	return buf.String(), nil
}

// Render fills TextContent and HTMLContent from BodyStr or the message templates.
func (m *EmailMessage) Render(conf *Config) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}
	if err := ParseEmailTemplates(conf.Debug || conf.TestMode); err != nil {
		return err
	}

	var err error
	if m.BodyStr == "" {
		if m.TextContent, err = m.execute(textExt, conf); err != nil {
			return err
		}
	}
	m.HTMLContent, err = m.execute(htmlExt, conf)
	return err
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }

// ParseEmailTemplates parses the embedded email templates once.
// strict makes missing template keys an error.
func ParseEmailTemplates(strict bool) error {
	tmplInit.Do(func() {
		templates, errTemplates = parseTemplates(assets.FS, strict)
	})
	return errTemplates
}

// parseTemplates parses every non-partial template of the email dir along with the
// "_base" layout of the same extension.
func parseTemplates(fsys fs.FS, strict bool) (map[string]map[string]executor, error) {
	paths, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return nil, errors.Wrap(err, "listing email templates")
	}

	missingKey := "missingkey=default"
	if strict {
		missingKey = "missingkey=error"
	}

	parsed := make(map[string]map[string]executor)
	for _, p := range paths {
		file := path.Base(p)
		ext := path.Ext(file)
		if strings.HasPrefix(file, "_") || (ext != textExt && ext != htmlExt) {
			continue
		}
		layout := path.Join(emailTemplatesDir, "_base"+ext)

		var tmpl executor
		if ext == textExt {
			tmpl, err = texttmpl.ParseFS(fsys, layout, p)
			if err == nil {
				tmpl = tmpl.(*texttmpl.Template).Option(missingKey)
			}
		} else {
			tmpl, err = htmltmpl.ParseFS(fsys, layout, p)
			if err == nil {
				tmpl = tmpl.(*htmltmpl.Template).Option(missingKey)
			}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", p)
		}

		name := strings.TrimSuffix(file, ext)
		if parsed[name] == nil {
			parsed[name] = make(map[string]executor)
		}
		parsed[name][ext] = tmpl
	}
	return parsed, nil
}
