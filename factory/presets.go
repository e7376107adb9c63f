package factory

import "fmt"

// =============================================================================
// PRESETS - Common fortnight patterns as JSON
// =============================================================================

// StandardFortnightJSON is Monday to Friday in both weeks with lunch and smoko.
func StandardFortnightJSON(id, name, start, end string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"weeks": {"1": %s, "2": %s}
	}`, id, name, weekdaysJSON(start, end), weekdaysJSON(start, end))
}

// NineDayFortnightJSON is the standard fortnight with the second Friday as an RDO.
func NineDayFortnightJSON(id, name, start, end string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"weeks": {"1": %s, "2": %s},
		"rdos": {"2": ["friday"]}
	}`, id, name, weekdaysJSON(start, end), weekdaysJSON(start, end))
}

func weekdaysJSON(start, end string) string {
	day := fmt.Sprintf(`{"start": %q, "end": %q, "breaks": {"lunch": true, "smoko": true}}`, start, end)
	return fmt.Sprintf(`{"monday": %s, "tuesday": %s, "wednesday": %s, "thursday": %s, "friday": %s}`,
		day, day, day, day, day)
}
