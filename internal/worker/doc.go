// Package worker drives leased jobs through the download, transcode, upload,
// and cleanup stages.
//
// One Pool runs per resolution queue with a bounded number of concurrent jobs.
// Stage progress maps onto fixed bands (download 0-10, transcode 10-90, upload
// 90-98, cleanup 98-100) so clients see a single monotonic percentage. Local
// temporary files are removed exactly once on every exit path; removal errors
// are logged and never override the job outcome. Failures feed the broker's
// retry machinery, classified by the services error markers.
package worker
