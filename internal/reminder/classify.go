package reminder

import "time"

// Classify assigns the reminder window for an event at date, seen from now.
// Bounds are exclusive below and inclusive above: exactly 24h is NearTerm,
// exactly 72h is MidTerm, and an event at or before now gets None.
func Classify(now, date time.Time) Window {
	hours := date.Sub(now).Hours()
	switch {
	case hours > 0 && hours <= nearTermHours:
		return NearTerm
	case hours > nearTermHours && hours <= midTermHours:
		return MidTerm
	default:
		return None
	}
}

// Compose builds the notification title and body for an event.
func Compose(ev Event, w Window) (title, body string) {
	agenda := ev.Agenda
	if agenda == "" {
		agenda = defaultAgenda
	}
	switch w {
	case NearTerm:
		return "Event Tomorrow!",
			`Reminder: "` + agenda + `" is happening in less than 24 hours!`
	case MidTerm:
		return "Event in 3 Days",
			`Upcoming: "` + agenda + `" is happening in less than 3 days`
	default:
		return "", ""
	}
}
