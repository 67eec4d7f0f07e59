// Package tracking turns consecutive vehicle position snapshots into
// movement records.
//
// FilterByRoutePrefix narrows a snapshot to one operator's routes. A
// Classifier retains the previous filtered snapshot, joins it against the
// next one by vehicle identity and labels each matched vehicle as normal,
// slow or delayed from how far it moved between the two polls.
//
// Displacement is measured in raw degree space, not in meters. The
// thresholds were calibrated against that metric for a one-minute polling
// interval and must be changed together with it.
package tracking
