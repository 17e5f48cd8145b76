package notify

import (
	"strings"
	"testing"

	"parashasongs/internal/config"
)

func TestTemplatesLinkSubmitted(t *testing.T) {
	tmpl := NewTemplates(&config.Config{BaseURL: "https://songs.example.com"})

	subject, htmlBody, textBody := tmpl.LinkSubmitted(testPayload())

	if !strings.Contains(subject, "Oseh Shalom") {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"Oseh Shalom", "parasha bereshit", "https://example.com/oseh-shalom", "/approve/abc"} {
		if !strings.Contains(htmlBody, want) {
			t.Errorf("html missing %q", want)
		}
		if !strings.Contains(textBody, want) {
			t.Errorf("text missing %q", want)
		}
	}
	if strings.Contains(textBody, "Verse:") {
		t.Error("empty fields should be omitted")
	}
}

func TestTemplatesQueueMode(t *testing.T) {
	tmpl := NewTemplates(&config.Config{BaseURL: "https://songs.example.com"})
	p := testPayload()
	p.ApprovalURL = ""

	_, htmlBody, textBody := tmpl.LinkSubmitted(p)
	if !strings.Contains(textBody, "https://songs.example.com/api/moderation/pending") {
		t.Errorf("text = %q", textBody)
	}
	if strings.Contains(htmlBody, "Approve</a>") {
		t.Error("queue mode has no approve button")
	}
}

func TestTemplatesEscapeHTML(t *testing.T) {
	tmpl := NewTemplates(&config.Config{BaseURL: "https://songs.example.com"})
	p := testPayload()
	p.SongTitle = `Song & "Dance"`
	added := "<b>eve</b>"
	p.AddedBy = &added

	_, htmlBody, _ := tmpl.LinkSubmitted(p)
	if strings.Contains(htmlBody, "<b>eve</b>") {
		t.Error("expected submitter to be escaped")
	}
	if !strings.Contains(htmlBody, "Song &amp; &#34;Dance&#34;") {
		t.Error("expected title to be escaped")
	}
}

func TestTargetLabel(t *testing.T) {
	haftarah := "noach-sephardi"
	tests := []struct {
		name string
		p    Payload
		want string
	}{
		{"parasha", Payload{TargetKind: "parasha", ParashaID: "noach"}, "parasha noach"},
		{"haftarah", Payload{TargetKind: "haftarah", ParashaID: "noach", TargetID: &haftarah}, "haftarah noach-sephardi (noach)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := targetLabel(tt.p); got != tt.want {
				t.Errorf("targetLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}
