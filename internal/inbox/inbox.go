// internal/inbox/inbox.go
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

// subjectPrefix identifies the platform's code delivery emails.
const subjectPrefix = "Your Steam account: Access from"

// codePattern extracts the code from the plain-text body.
var codePattern = regexp.MustCompile(`Login Code\r?\n(\S+)`)

// recentMessages bounds how many of the newest inbox messages each poll
// inspects.
const recentMessages = 5

// DefaultPollDelay is waited between inbox polls.
const DefaultPollDelay = 5 * time.Second

// ErrNoCode is returned when the mailbox never produced a matching code
// within the configured bounds.
var ErrNoCode = errors.New("inbox: no login code found")

// Resolver logs in to one mailbox and polls it for login codes.
type Resolver struct {
	log  *logrus.Logger
	host string
	port int

	// Delay between polls; DefaultPollDelay when zero.
	Delay time.Duration
	// MaxTries bounds the poll loop; <= 0 polls until ctx is done.
	MaxTries int

	c *client.Client
}

// New builds a Resolver for the given IMAP server.
func New(log *logrus.Logger, host string, port int) *Resolver {
	return &Resolver{log: log, host: host, port: port}
}

// LogIn connects to the IMAP server over TLS and authenticates.
func (r *Resolver) LogIn(username, password string) error {
	addr := fmt.Sprintf("%s:%d", r.host, r.port)
	r.log.WithFields(logrus.Fields{"addr": addr, "user": username}).Info("logging in to IMAP server")

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("inbox: dialing %s: %w", addr, err)
	}
	if err := c.Login(username, password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("inbox: authenticating as %s: %w", username, err)
	}
	r.log.Info("IMAP authenticated")
	r.c = c
	return nil
}

// Close logs out of the mailbox.
func (r *Resolver) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Logout()
}

// Code polls the inbox until a login code shows up, the try bound is
// exhausted, or ctx is done. Per-message failures are logged and
// skipped, never fatal to the loop.
func (r *Resolver) Code(ctx context.Context) (string, error) {
	if r.c == nil {
		return "", errors.New("inbox: not logged in")
	}
	delay := r.Delay
	if delay <= 0 {
		delay = DefaultPollDelay
	}

	tries := 0
	for {
		r.log.Info("checking inbox for a login code...")
		code, err := r.scanOnce()
		if err != nil {
			return "", err
		}
		if code != "" {
			r.log.Info("successfully extracted login code from email")
			return code, nil
		}

		tries++
		if r.MaxTries > 0 && tries >= r.MaxTries {
			r.log.Warnf("no login code after %d tries, giving up", tries)
			return "", ErrNoCode
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
}

// scanOnce opens the inbox read-only and inspects the newest messages,
// returning the first extracted code or "" when none matched.
func (r *Resolver) scanOnce() (string, error) {
	mbox, err := r.c.Select("INBOX", true)
	if err != nil {
		return "", fmt.Errorf("inbox: opening INBOX: %w", err)
	}
	if mbox.Messages == 0 {
		return "", nil
	}

	from := uint32(1)
	if mbox.Messages > recentMessages {
		from = mbox.Messages - recentMessages + 1
	}
	seq := new(imap.SeqSet)
	seq.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, recentMessages)
	done := make(chan error, 1)
	go func() {
		done <- r.c.Fetch(seq, items, messages)
	}()

	// Newest first.
	var fetched []*imap.Message
	for msg := range messages {
		fetched = append(fetched, msg)
	}
	if err := <-done; err != nil {
		return "", fmt.Errorf("inbox: fetching messages: %w", err)
	}

	for i := len(fetched) - 1; i >= 0; i-- {
		msg := fetched[i]
		code, err := r.extract(msg, section)
		if err != nil {
			r.log.WithError(err).Error("error while reading email, skipping")
			continue
		}
		if code != "" {
			return code, nil
		}
	}
	return "", nil
}

// extract pulls a code out of one message, if it is a code delivery
// email at all.
func (r *Resolver) extract(msg *imap.Message, section *imap.BodySectionName) (string, error) {
	if msg.Envelope == nil || !strings.HasPrefix(msg.Envelope.Subject, subjectPrefix) {
		return "", nil
	}
	body := msg.GetBody(section)
	if body == nil {
		return "", errors.New("inbox: message body not fetched")
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		return "", fmt.Errorf("inbox: parsing message: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("inbox: reading message part: %w", err)
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, err := header.ContentType()
		if err != nil || mediaType != "text/plain" {
			continue
		}
		text, err := io.ReadAll(part.Body)
		if err != nil {
			return "", fmt.Errorf("inbox: reading message body: %w", err)
		}
		return ExtractCode(msg.Envelope.Subject, string(text)), nil
	}
	return "", nil
}

// ExtractCode applies the subject and body rules to raw message text.
// Pure; exported for tests and manual tooling.
func ExtractCode(subject, body string) string {
	if !strings.HasPrefix(subject, subjectPrefix) {
		return ""
	}
	m := codePattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}
