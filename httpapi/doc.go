// Package httpapi serves a fileshare [fileshare.Engine] over HTTP.
//
// # Routes
//
//	POST /upload          multipart/form-data with a "file" part, optionally preceded
//	                      by a "size" field so the body can be streamed straight to
//	                      staging. Responds with [UploadResponse].
//	GET  /download/{code} streams the file once; 404 with an empty body otherwise.
//	GET  /status          Authorization: Bearer <owner token>. Responds with [StatusResponse].
//	GET  /metrics         Prometheus text exposition, when a metrics handler is set.
//
// Every response carries permissive CORS headers and OPTIONS is answered with 204.
// Engine errors are mapped to status codes by [StatusCode] and described in an
// [ErrorResponse] body whose code round-trips through [ErrorForCode].
//
// # What this package must NOT do
//
//   - Hold session state. Every decision is made by the Engine.
//   - Buffer a download in memory.
package httpapi
