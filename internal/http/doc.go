// Package http provides the echo handlers and middleware of the scheduling API.
//
// The router exposes the following endpoints:
//   - GET /availability/week: the aggregated availability heatmap of one week,
//     with the viewer's own cells marked. The optional `date` query parameter
//     (YYYY-MM-DD) selects the week in the viewer's timezone.
//   - PUT /availability/selection: replaces the viewer's selection for one
//     week. The body carries the full desired cell set; only the diff against
//     stored state is applied. Partial batch failures return 207 with the
//     per-call failures listed.
//   - GET /entries, POST /entries, PUT /entries/{id}, DELETE /entries/{id}:
//     calendar entry management exchanging the `entryDTO` payload defined in
//     schedule_handler.go. Creating a repeating entry returns the whole series.
//   - POST /entries/{id}/rsvp: toggles or moves the caller's RSVP choice.
//   - PUT /series/{series}, DELETE /series/{series}: recurring series
//     replacement and deletion. A replacement whose old-series delete fails
//     returns 207 and leaves both series in place for a retried delete.
//   - GET /calendar/week.ics: the week's entries as an iCalendar feed.
//
// Identity arrives via gateway headers (see identity.go); requests without
// X-User-ID are rejected by the services with 403.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
