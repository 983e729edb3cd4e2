// Package agent runs the periodic discovery loop.
//
// An Agent scans one target, converts the responding hosts into
// observations and submits them as a single batch through a Reporter. The
// HTTPReporter posts to a remote collector; the LocalReporter hands the
// batch straight to an in-process ReportService. A Runner drives one Agent
// per configured target.
package agent
