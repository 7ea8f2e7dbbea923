package importer

// dedup rejects every valid row whose natural key values were already used by an earlier kept row.
// The first row in file order always wins; the error is scoped to the colliding columns.
func dedup(rows []*BatchRow, keys []string) {
	seen := make(map[string]map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = make(map[string]bool)
	}

	for _, row := range rows {
		if !row.valid() {
			continue
		}
		errs := make(FieldErrorSet)
		for _, k := range keys {
			if v := row.Normalized.value(k); v != "" && seen[k][v] {
				errs[k] = msgDuplicate
			}
		}
		if len(errs) > 0 {
			row.reject(ReasonDuplicate, errs)
			continue
		}
		for _, k := range keys {
			if v := row.Normalized.value(k); v != "" {
				seen[k][v] = true
			}
		}
	}
}

// value returns the normalized value of a key column.
func (n *NormalizedRow) value(col string) string {
	switch col {
	case ColEmail:
		return n.Email
	case ColPhoneNumber:
		return n.PhoneNumber
	case ColGivenName:
		return n.GivenName
	case ColFamilyName:
		return n.FamilyName
	case ColStudentNumber:
		return n.StudentNumber
	}
	return ""
}
