// Package services contains the business logic between the HTTP
// transport and the store: upload processing, report generation, the
// defect workflow, user administration and the building hierarchy.
// Services enforce role permissions and per-building access; handlers
// only translate HTTP.
package services
