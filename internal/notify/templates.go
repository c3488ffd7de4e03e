package notify

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

// renderMessage builds the subject and both bodies for an enforcement
// action: a plain-text part and an HTML part carrying the same content.
// The body always lists the concrete issues that triggered the action.
// A nil listing falls back to citing the listing ID alone.
func renderMessage(listing *models.Listing, violation *models.ViolationRecord, action models.Action, adminEmail string) (subject, text, htmlBody string) {
	var intro string
	switch action {
	case models.ActionDelete:
		subject = "Your listing has been removed"
		intro = "Your listing was removed because it violated our content policy."
	case models.ActionBan:
		subject = "Your account has been suspended"
		intro = "Your account has been suspended due to repeated content policy violations."
	case models.ActionPause:
		subject = "Your listing has been paused pending review"
		intro = "Your listing was paused while our moderation team reviews it. It is not visible to buyers until the review completes."
	case models.ActionApprove:
		subject = "Your listing has been approved"
		intro = "Good news: your listing was reviewed and approved. No further action is needed."
	default:
		subject = "A warning about your listing"
		intro = "Our content review flagged your listing. Please update it to comply with our content policy; repeated warnings can lead to removal."
	}

	issues := detailLines(violation.ViolationsJSON)
	reference := violation.ListingID
	if listing != nil && listing.Title != "" {
		reference = fmt.Sprintf("%q (%s)", listing.Title, violation.ListingID)
	}

	return subject, renderText(intro, issues, reference, adminEmail), renderHTML(subject, intro, issues, reference, adminEmail)
}

func renderText(intro string, issues []string, reference, adminEmail string) string {
	var b strings.Builder
	b.WriteString(intro + "\n")
	if len(issues) > 0 {
		b.WriteString("\nWhat we found:\n")
		for i, issue := range issues {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, issue)
		}
	}
	fmt.Fprintf(&b, "\nListing: %s\n", reference)
	if adminEmail != "" {
		fmt.Fprintf(&b, "If you believe this was a mistake, reply to %s with the listing reference above.\n", adminEmail)
	}
	return b.String()
}

func renderHTML(subject, intro string, issues []string, reference, adminEmail string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(subject))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(intro))
	if len(issues) > 0 {
		b.WriteString("<p>What we found:</p><ol>")
		for _, issue := range issues {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(issue))
		}
		b.WriteString("</ol>")
	}
	fmt.Fprintf(&b, "<p>Listing: %s</p>", html.EscapeString(reference))
	if adminEmail != "" {
		escaped := html.EscapeString(adminEmail)
		fmt.Fprintf(&b, `<p>If you believe this was a mistake, reply to <a href="mailto:%s">%s</a> with the listing reference above.</p>`, escaped, escaped)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// detailLines extracts the owner-facing lines from the stored detail payload.
// Internal flags stay internal.
func detailLines(raw string) []string {
	var detail models.ViolationDetail
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		return nil
	}
	lines := append([]string{}, detail.Issues...)
	return append(lines, detail.RedFlags...)
}
