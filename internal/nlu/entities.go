package nlu

// EntitySet holds the eight extraction slots. A nil pointer means the slot
// was not extracted, which is distinct from an extracted empty string.
// Instances are built once per request and not mutated afterwards.
type EntitySet struct {
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	City      *string `json:"city"`
	LeadID    *string `json:"lead_id"`
	VisitTime *string `json:"visit_time"`
	Status    *string `json:"status"`
	Source    *string `json:"source"`
	Notes     *string `json:"notes"`
}

// Empty reports whether no slot was extracted at all.
func (e EntitySet) Empty() bool {
	return e.Name == nil && e.Phone == nil && e.City == nil && e.LeadID == nil &&
		e.VisitTime == nil && e.Status == nil && e.Source == nil && e.Notes == nil
}

// ValueOf returns the slot value or "" when the slot is absent. Used by the
// dispatcher when building CRM payloads.
func ValueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ValidationError reports required entities that could not be extracted for
// the detected intent. MissingFields preserves the extraction check order.
type ValidationError struct {
	Type          string   `json:"type"`
	MissingFields []string `json:"missing_fields"`
}
