package shared

// DelStatus is the logical lifecycle flag carried by every row. Rows are
// never physically removed; Deleted rows are excluded from all aggregates.
type DelStatus string

const (
	// StatusLive marks an active row.
	StatusLive DelStatus = "Live"
	// StatusDeleted marks a soft-deleted row.
	StatusDeleted DelStatus = "Deleted"
)

// IsLive reports whether the row participates in active-state computations.
func (d DelStatus) IsLive() bool {
	return d == StatusLive
}
