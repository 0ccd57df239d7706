// Package dataprocessing turns raw iAuditor pre-settlement inspection
// CSV exports into classified inspection items and building metrics.
//
// The pipeline has three stages: Parse melts the wide per-unit export
// into one row per (unit, room, component), Classify assigns a status
// class and urgency to each row, and Summarize aggregates the rows
// into the settlement-readiness metrics persisted with the inspection.
package dataprocessing
