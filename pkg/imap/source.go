// Package imap reads statement emails from an IMAP mailbox.
package imap

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/pkg/htmltext"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Config holds the IMAP account settings
type Config struct {
	Addr     string // host:port, TLS
	Username string
	Password string
	Mailbox  string
}

// Source implements a mail source over IMAP. A connection is opened per call.
type Source struct {
	cfg Config

	mu sync.Mutex
}

// NewSource creates a new IMAP source
func NewSource(cfg Config) *Source {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Source{cfg: cfg}
}

func (s *Source) connect(ctx context.Context) (*client.Client, error) {
	c, err := client.DialTLS(s.cfg.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", s.cfg.Addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}
	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(s.cfg.Mailbox, true); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap select %s: %w", s.cfg.Mailbox, err)
	}
	return c, nil
}

// BuildCriteria matches any of the phrases in the message text, received on
// or after query.Since when set
func BuildCriteria(query domain.MailQuery) *imap.SearchCriteria {
	var phrases []*imap.SearchCriteria
	for _, p := range query.Phrases {
		if p = strings.TrimSpace(p); p != "" {
			c := imap.NewSearchCriteria()
			c.Text = []string{p}
			phrases = append(phrases, c)
		}
	}

	criteria := imap.NewSearchCriteria()
	if !query.Since.IsZero() {
		criteria.Since = query.Since
	}

	switch len(phrases) {
	case 0:
	case 1:
		criteria.Text = phrases[0].Text
	default:
		// OR is binary; fold the phrases into a right-leaning tree
		acc := phrases[len(phrases)-1]
		for i := len(phrases) - 2; i >= 0; i-- {
			or := imap.NewSearchCriteria()
			or.Or = [][2]*imap.SearchCriteria{{phrases[i], acc}}
			acc = or
		}
		criteria.Or = acc.Or
	}
	return criteria
}

// Search returns up to max UIDs matching query, newest first
func (s *Source) Search(ctx context.Context, query domain.MailQuery, max int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	uids, err := c.UidSearch(BuildCriteria(query))
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if max > 0 && len(uids) > max {
		uids = uids[:max]
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	log.Printf("[IMAP] Search in %s matched %d message(s)", s.cfg.Mailbox, len(ids))
	return ids, nil
}

// Fetch downloads one message by UID and decodes its text body
func (s *Source) Fetch(ctx context.Context, id string) (*domain.RawEmail, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid imap uid %q: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope, imap.FetchInternalDate}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		if msg == nil {
			msg = m
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch %s: %w", id, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("imap message %s not found", id)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("imap message %s has no body", id)
	}

	email, err := ParseMessage(body)
	if err != nil {
		return nil, fmt.Errorf("imap message %s: %w", id, err)
	}
	email.ID = id
	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = msg.InternalDate
	}
	if email.Subject == "" && msg.Envelope != nil {
		email.Subject = msg.Envelope.Subject
	}
	return email, nil
}

// ParseMessage decodes an RFC 5322 message into a RawEmail. The plain-text
// part is preferred; HTML is reduced to text when it is the only body.
func ParseMessage(r io.Reader) (*domain.RawEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	email := &domain.RawEmail{}
	if subject, err := mr.Header.Subject(); err == nil {
		email.Subject = subject
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		email.Sender = from[0].String()
	}
	if date, err := mr.Header.Date(); err == nil {
		email.ReceivedAt = date
	}

	var plain, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		if err != nil {
			contentType = "text/plain"
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s part: %w", contentType, err)
		}

		switch contentType {
		case "text/plain":
			if plain == "" {
				plain = string(data)
			}
		case "text/html":
			if html == "" {
				html = string(data)
			}
		}
	}

	switch {
	case strings.TrimSpace(plain) != "":
		email.Body = plain
	case html != "":
		text, err := htmltext.ToText(html)
		if err != nil {
			return nil, fmt.Errorf("failed to convert html body: %w", err)
		}
		email.Body = text
	}
	return email, nil
}
