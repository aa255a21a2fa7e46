package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/zatekoja/Chartreviewautomation/internal/domain/entities"
)

// sectionRuneCap bounds each section's contribution to the normalized
// rendering so a pathological note cannot blow up prompts or storage.
const sectionRuneCap = 4000

// planItemDenylist filters procedure-style plan lines out of the
// normalized rendering. These describe in-visit actions, not
// documentation, and churn between drafts without changing meaning.
var planItemDenylist = []string{
	"biopsy",
	"excision",
	"destruction",
	"injection",
	"cryotherapy",
	"suture removal",
}

// NormalizeNote renders a note into the canonical text form used for
// fingerprinting and as AI check input. Section order is fixed, empty
// sections are skipped, and denylisted plan items are dropped so two
// drafts differing only in cosmetic churn normalize identically.
func NormalizeNote(doc *entities.NoteDocument) string {
	if doc == nil {
		return ""
	}

	var b strings.Builder
	for _, name := range entities.SectionOrder {
		section := doc.Section(name)
		if section == nil {
			continue
		}

		text := normalizeText(section.Text)
		items := filterPlanItems(section.PlanItems)
		if text == "" && len(items) == 0 {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.ToLower(name))
		b.WriteString(":\n")
		if text != "" {
			b.WriteString(truncateRunes(text, sectionRuneCap))
			b.WriteString("\n")
		}
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Fingerprint returns the hex SHA-256 of the normalized rendering.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func filterPlanItems(items []string) []string {
	var kept []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || isDenylisted(item) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func isDenylisted(item string) bool {
	lowered := strings.ToLower(item)
	for _, term := range planItemDenylist {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
