// Package http contains the HTTP handlers for the SitePulse API. Each
// handler owns one resource, exposes Routes() for mounting on the main
// chi router, and reports failures as RFC 7807 problem documents.
package http
