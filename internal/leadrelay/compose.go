package leadrelay

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/internal/leads"
	"github.com/helenaexplora/explora-platform/internal/notify"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Tag values attached to outgoing messages.
const (
	CategoryLead    = "lead"
	CategoryWelcome = "welcome"
)

// SocialLink is one entry of the welcome email footer.
type SocialLink struct {
	Name string
	URL  string
}

// DefaultSocialLinks are the community channels promoted in the welcome email.
var DefaultSocialLinks = []SocialLink{
	{Name: "YouTube", URL: "https://www.youtube.com/@helenaexplora"},
	{Name: "Instagram", URL: "https://www.instagram.com/helenaexplora_usa"},
	{Name: "TikTok", URL: "https://www.tiktok.com/@helenaexplora"},
}

// Row is one label/value line. Value is already sanitized.
type Row struct {
	Label string
	Value template.HTML
}

// Section groups the rows of one form step.
type Section struct {
	Title string
	Rows  []Row
}

type leadView struct {
	Heading    string
	Variant    string
	ReceivedAt string
	Sections   []Section
}

type welcomeView struct {
	Links []SocialLink
}

// Composer renders the internal notification and the welcome email.
type Composer struct {
	schema    *leads.Schema
	loc       *i18n.Localizer
	tag       language.Tag
	recipient string
	links     []SocialLink
	now       func() time.Time
	newID     func() string
}

// NewComposer builds a composer for the active form variant. Internal
// notifications go to recipient.
func NewComposer(schema *leads.Schema, loc *i18n.Localizer, recipient string) *Composer {
	if loc == nil {
		loc = i18n.NewLocalizer("")
	}
	return &Composer{
		schema:    schema,
		loc:       loc,
		tag:       loc.Fallback(),
		recipient: recipient,
		links:     DefaultSocialLinks,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Compose returns the internal notification followed by the welcome email.
func (c *Composer) Compose(rec *leads.Record) ([]notify.EmailMessage, error) {
	lead, err := c.leadEmail(rec)
	if err != nil {
		return nil, err
	}
	welcome, err := c.welcomeEmail(rec)
	if err != nil {
		return nil, err
	}
	return []notify.EmailMessage{lead, welcome}, nil
}

func (c *Composer) leadEmail(rec *leads.Record) (notify.EmailMessage, error) {
	view := leadView{
		Heading:    "Novo Lead - Helena Explora",
		Variant:    c.schema.Title(),
		ReceivedAt: c.now().UTC().Format("2006-01-02 15:04 MST"),
		Sections:   c.Sections(rec),
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "lead.html.tmpl", view); err != nil {
		return notify.EmailMessage{}, fmt.Errorf("leadrelay: render lead email: %w", err)
	}
	return notify.EmailMessage{
		To:      c.recipient,
		ToName:  "Helena Explora",
		Subject: c.loc.Text(c.tag, i18n.KeyLeadSubject, singleLine(rec.FullName)),
		HTML:    buf.String(),
		RefID:   c.newID(),
		Tags:    map[string]string{"category": CategoryLead},
	}, nil
}

func (c *Composer) welcomeEmail(rec *leads.Record) (notify.EmailMessage, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "welcome.html.tmpl", welcomeView{Links: c.links}); err != nil {
		return notify.EmailMessage{}, fmt.Errorf("leadrelay: render welcome email: %w", err)
	}
	return notify.EmailMessage{
		To:      strings.TrimSpace(rec.Email),
		ToName:  singleLine(rec.FullName),
		Subject: c.loc.Text(c.tag, i18n.KeyWelcomeSubject),
		HTML:    buf.String(),
		RefID:   c.newID(),
		Tags:    map[string]string{"category": CategoryWelcome},
	}, nil
}

// Sections lists every applicable field of the variant, one section per step.
// "Other" free text is folded into the field it completes.
func (c *Composer) Sections(rec *leads.Record) []Section {
	steps := c.schema.Steps()
	out := make([]Section, 0, len(steps))
	for _, step := range steps {
		sec := Section{Title: step.Title}
		for _, f := range step.Fields {
			if f.OtherOf != "" || !c.schema.Applies(f, rec) {
				continue
			}
			sec.Rows = append(sec.Rows, Row{
				Label: f.Label,
				Value: template.HTML(Sanitize(c.display(f, rec))),
			})
		}
		out = append(out, sec)
	}
	return out
}

func (c *Composer) display(f leads.FieldSpec, rec *leads.Record) string {
	companion, hasOther := c.schema.Companion(f.Name)
	other := ""
	if hasOther {
		other = strings.TrimSpace(rec.Value(companion.Name))
	}

	if leads.IsList(f.Name) {
		var parts []string
		for _, v := range rec.Values(f.Name) {
			if hasOther && v == leads.OtherOption {
				if other != "" {
					parts = append(parts, other)
				} else {
					parts = append(parts, v)
				}
				continue
			}
			parts = append(parts, v)
		}
		if len(parts) == 0 {
			return c.loc.Text(c.tag, i18n.KeyNoneSelected)
		}
		return strings.Join(parts, ", ")
	}

	v := strings.TrimSpace(rec.Value(f.Name))
	if hasOther && v == leads.OtherOption && other != "" {
		return other
	}
	if v == "" {
		return c.loc.Text(c.tag, i18n.KeyNotProvided)
	}
	return v
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
