// Package staging spools uploaded bytes into uniquely named files under a private
// upload directory and hands them back as session payloads.
//
// Staged files are named "<uuid>_<filename>" so concurrent uploads of the same name
// never collide. A staged [File] is read once and then released; Release closes and
// removes it.
//
// # What this package must NOT do
//
//   - Decide session state or allocate invite codes.
//   - Keep staged files after Release.
package staging
