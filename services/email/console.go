package emailsvc

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolbus/core"
)

var (
	// SentMessages records every message delivered by a console service.
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

type consoleService struct {
	conf       *core.Config
	from       mail.Address
	subjPrefix string
	out        io.Writer // nil discards the dump
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService returns an EmailService dumping messages as MIME to stdout, for local development.
func NewConsoleService(conf *core.Config) core.EmailService {
	return newConsoleService(conf, os.Stdout)
}

func newConsoleService(conf *core.Config, out io.Writer) *consoleService {
	return &consoleService{
		conf:       conf,
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
		out:        out,
	}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		log.Printf("%+v", errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}
	if svc.out != nil {
		if _, err := io.WriteString(svc.out, svc.dump(*msg)); err != nil {
			log.Printf("%+v", errors.Wrap(err, "writing email"))
		}
	}
	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
}

// dump formats msg as a multipart/alternative MIME message.
func (svc *consoleService) dump(msg core.EmailMessage) string {
	var b strings.Builder
	parts := multipart.NewWriter(&b)

	headers := [][2]string{
		{"From", svc.from.String()},
		{"To", joinAddresses(msg.To)},
		{"Cc", joinAddresses(msg.Cc)},
		{"Bcc", joinAddresses(msg.Bcc)},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"Subject", svc.subjPrefix + msg.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/alternative; boundary=" + parts.Boundary()},
	}
	for _, h := range headers {
		if h[1] != "" {
			fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
		}
	}
	b.WriteString("\r\n")

	writePart := func(contentType, content string) {
		w, err := parts.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType + "; charset=utf-8"}})
		if err == nil {
			fmt.Fprintf(w, "%s\r\n", content)
		}
	}
	writePart("text/plain", msg.TextContent)
	if msg.HTMLContent != "" {
		writePart("text/html", msg.HTMLContent)
	}
	_ = parts.Close()
	return b.String()
}

func joinAddresses(addrs []mail.Address) string {
	formatted := make([]string, len(addrs))
	for i, a := range addrs {
		formatted[i] = a.String()
	}
	return strings.Join(formatted, ", ")
}

type consoleServiceMock struct {
	*consoleService
}

// NewConsoleServiceMock delivers synchronously without output; sent messages are kept in SentMessages.
func NewConsoleServiceMock(conf *core.Config) core.EmailService {
	return &consoleServiceMock{consoleService: newConsoleService(conf, nil)}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.deliver(msg)
	}
}
