package enrich

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ragline/ragline/internal/prompt"
)

// Completer is the slice of the completion service this package needs.
type Completer interface {
	GenerateJSON(ctx context.Context, parts []string, temperature float32) (string, error)
}

// TitledURL, TitledEmail, and TitledPhone pair a contact with its display
// title. JSON field names match the client event protocol.
type TitledURL struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type TitledEmail struct {
	Email string `json:"email"`
	Title string `json:"title"`
}

type TitledPhone struct {
	Phone string `json:"phone"`
	Title string `json:"title"`
}

// TitledContacts is the contact_info event payload. Slices are never nil so
// the payload always serializes with all three arrays present.
type TitledContacts struct {
	URLs   []TitledURL   `json:"urls"`
	Emails []TitledEmail `json:"emails"`
	Phones []TitledPhone `json:"phones"`
}

// EmptyTitledContacts returns the zero payload with non-nil slices.
func EmptyTitledContacts() TitledContacts {
	return TitledContacts{
		URLs:   []TitledURL{},
		Emails: []TitledEmail{},
		Phones: []TitledPhone{},
	}
}

// ContactPipeline extracts contacts from a finished response and titles them
// with one batched completion call. Any failure along the way degrades to
// deterministic fallback titles, or to the empty payload when nothing was
// extracted.
func ContactPipeline(ctx context.Context, c Completer, text string, sources []string, logger *slog.Logger) TitledContacts {
	contacts := ExtractContacts(text, sources)
	if contacts.Empty() {
		return EmptyTitledContacts()
	}

	titles := titleBatch(ctx, c, contacts, text, logger)

	out := EmptyTitledContacts()
	for _, url := range contacts.URLs {
		out.URLs = append(out.URLs, TitledURL{URL: url, Title: titleOr(titles, url, "Visit Link")})
	}
	for _, email := range contacts.Emails {
		out.Emails = append(out.Emails, TitledEmail{Email: email, Title: titleOr(titles, email, defaultEmailTitle(email))})
	}
	for _, phone := range contacts.Phones {
		out.Phones = append(out.Phones, TitledPhone{Phone: phone, Title: titleOr(titles, phone, "Call "+phone)})
	}
	return out
}

// titleBatch issues the single batched title call. Returns an empty map on
// any failure; callers fall back to deterministic titles.
func titleBatch(ctx context.Context, c Completer, contacts Contacts, contextText string, logger *slog.Logger) map[string]string {
	instruction := prompt.ContactTitles(contacts.All(), contextText)

	raw, err := c.GenerateJSON(ctx, []string{instruction}, 0)
	if err != nil {
		logger.Error("batched contact-title call failed", "error", err)
		return nil
	}

	var titles map[string]string
	if err := decodeJSONBlock(raw, &titles); err != nil {
		logger.Error("contact-title response was not a JSON object", "error", err)
		return nil
	}
	return titles
}

func titleOr(titles map[string]string, key, fallback string) string {
	if t, ok := titles[key]; ok && strings.TrimSpace(t) != "" {
		return t
	}
	return fallback
}

// defaultEmailTitle derives a title from the address local part:
// "jane.doe@nation.example" -> "Email Jane Doe". Only dots split words;
// underscores and hyphens stay part of the name.
func defaultEmailTitle(email string) string {
	local, _, _ := strings.Cut(email, "@")
	words := strings.Split(local, ".")
	for i, w := range words {
		words[i] = strings.Title(strings.ToLower(w)) //nolint:staticcheck // ASCII local parts only
	}
	return "Email " + strings.Join(words, " ")
}
