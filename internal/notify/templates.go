package notify

import (
	"fmt"
	"html"
	"strings"

	"parashasongs/internal/config"
)

// Templates renders notification bodies.
type Templates struct {
	siteTitle string
	baseURL   string
}

// NewTemplates creates a new templates instance.
func NewTemplates(cfg *config.Config) *Templates {
	return &Templates{siteTitle: "Parasha Songs", baseURL: cfg.BaseURL}
}

// baseHTML wraps content in a consistent HTML email template.
func (t *Templates) baseHTML(title, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #1e3a8a; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
        .footer { padding: 15px; text-align: center; font-size: 12px; color: #6b7280; }
        .button { display: inline-block; background: #1e3a8a; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; }
        .label { font-weight: 600; color: #374151; }
    </style>
</head>
<body>
    <div class="header"><h1>%s</h1></div>
    <div class="content">%s</div>
    <div class="footer"><a href="%s">%s</a></div>
</body>
</html>`, html.EscapeString(title), html.EscapeString(t.siteTitle), content, html.EscapeString(t.baseURL), html.EscapeString(t.baseURL))
}

// LinkSubmitted renders the moderator notification for a new submission.
func (t *Templates) LinkSubmitted(p Payload) (subject, htmlBody, textBody string) {
	subject = fmt.Sprintf("[%s] New song pending review: %s", t.siteTitle, p.SongTitle)

	rows := [][2]string{
		{"Song", p.SongTitle},
		{"Link", deref(p.SongURL)},
		{"Target", targetLabel(p)},
		{"Verse", deref(p.VerseRef)},
		{"Submitted by", deref(p.AddedBy)},
		{"Submitted at", p.SubmittedAt.UTC().Format("2006-01-02 15:04 MST")},
	}

	var content, text strings.Builder
	content.WriteString("<p>A new song link was submitted and needs review.</p>\n")
	text.WriteString("A new song link was submitted and needs review.\n\n")
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(&content, "<p><span class=\"label\">%s:</span> %s</p>\n", r[0], html.EscapeString(r[1]))
		fmt.Fprintf(&text, "%s: %s\n", r[0], r[1])
	}

	if p.ApprovalURL != "" {
		fmt.Fprintf(&content, "<p><a class=\"button\" href=\"%s\">Approve</a></p>\n", html.EscapeString(p.ApprovalURL))
		fmt.Fprintf(&text, "\nApprove: %s\n", p.ApprovalURL)
	} else {
		fmt.Fprintf(&content, "<p>Review it in the <a href=\"%s/api/moderation/pending\">moderation queue</a>.</p>\n", html.EscapeString(t.baseURL))
		fmt.Fprintf(&text, "\nModeration queue: %s/api/moderation/pending\n", t.baseURL)
	}

	return subject, t.baseHTML(subject, content.String()), text.String()
}

// summary is a one-line description used by chat-style webhooks.
func summary(p Payload) string {
	s := fmt.Sprintf("New song pending review: %q on %s", p.SongTitle, targetLabel(p))
	if p.ApprovalURL != "" {
		s += " - approve: " + p.ApprovalURL
	}
	return s
}

func targetLabel(p Payload) string {
	if p.TargetID == nil || *p.TargetID == "" {
		return fmt.Sprintf("%s %s", p.TargetKind, p.ParashaID)
	}
	return fmt.Sprintf("%s %s (%s)", p.TargetKind, *p.TargetID, p.ParashaID)
}
