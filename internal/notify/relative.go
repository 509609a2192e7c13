package notify

import (
	"time"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	keyMinutes = "%d minutes ago"
	keyHours   = "%d hours ago"
	keyDays    = "%d days ago"
)

func init() {
	_ = message.Set(language.English, keyMinutes, plural.Selectf(1, "%d",
		"=1", "1 minute ago",
		"other", "%d minutes ago"))
	_ = message.Set(language.English, keyHours, plural.Selectf(1, "%d",
		"=1", "1 hour ago",
		"other", "%d hours ago"))
	_ = message.Set(language.English, keyDays, plural.Selectf(1, "%d",
		"=1", "1 day ago",
		"other", "%d days ago"))
}

var printer = message.NewPrinter(language.English)

// Relative renders occurredAt relative to now, e.g. "5 minutes ago". It is
// computed on every read and never stored.
func Relative(now, occurredAt time.Time) string {
	d := now.Sub(occurredAt)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return printer.Sprintf(keyMinutes, int(d/time.Minute))
	case d < 24*time.Hour:
		return printer.Sprintf(keyHours, int(d/time.Hour))
	case d < 30*24*time.Hour:
		return printer.Sprintf(keyDays, int(d/(24*time.Hour)))
	default:
		return occurredAt.Format("2 Jan 2006")
	}
}
