package inventory

import "github.com/backline-app/server/model"

// Status is the condition of one partition of stock.
type Status string

const (
	StatusNewFunctional       Status = "new_functional"
	StatusPendingManagement   Status = "pending_management"
	StatusWorkingUrgentChange Status = "working_urgent_change"
	StatusTotallyBroken       Status = "totally_broken"
	StatusOrdered             Status = "ordered"
	StatusResolved            Status = "resolved"
)

// Legacy aliases still present in old documents.
const (
	legacyNew    Status = "new"
	legacyBroken Status = "broken"
)

// NormalizeStatus maps legacy aliases and the empty string onto the
// canonical status set. Absence of a status means functional.
func NormalizeStatus(s Status) Status {
	switch s {
	case "", legacyNew:
		return StatusNewFunctional
	case legacyBroken:
		return StatusTotallyBroken
	default:
		return s
	}
}

// defectScanOrder is the priority order the restoration resolver uses
// when no incident pins down the broken partition.
var defectScanOrder = []Status{StatusTotallyBroken, StatusWorkingUrgentChange, StatusOrdered}

// IsDefect reports whether s marks a partition awaiting repair or replacement.
func IsDefect(s Status) bool {
	switch NormalizeStatus(s) {
	case StatusTotallyBroken, StatusWorkingUrgentChange, StatusOrdered:
		return true
	}
	return false
}

// IsReportableCondition reports whether s is a condition a defect report
// may target.
func IsReportableCondition(s Status) bool {
	n := NormalizeStatus(s)
	return n == StatusWorkingUrgentChange || n == StatusTotallyBroken
}

// CanMarkOrdered reports whether a partition in status s may transition
// to ordered. Ordering is an in-place mutation with no quantity change.
func CanMarkOrdered(s Status) bool {
	n := NormalizeStatus(s)
	return n == StatusWorkingUrgentChange || n == StatusTotallyBroken
}

// PriorityFor derives the linked incident's priority from the reported
// condition. A totally broken unit outranks one still limping along.
func PriorityFor(condition Status) string {
	if NormalizeStatus(condition) == StatusTotallyBroken {
		return model.PriorityHigh
	}
	return model.PriorityMedium
}
