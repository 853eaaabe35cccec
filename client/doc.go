// Package client talks to a fileshare server over HTTP.
//
// Upload streams a local reader as multipart/form-data, Download writes a claimed file
// to any io.Writer and reports the sender's filename, and Status reads the outcome of a
// session by owner token. Server errors come back as the fileshare sentinel errors, so
// callers match them with errors.Is exactly as they would against an in-process Engine.
package client
