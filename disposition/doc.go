// Package disposition carries a filename across HTTP in a Content-Disposition header.
//
// # Grammar
//
//	attachment; filename="<escaped>"
//
// The escaped form backslash-escapes every '\' and '"' in the name (a quoted-string
// in the sense of RFC 9110 section 5.6.4). Decoding scans from the opening quote to
// the first unescaped quote and removes the escapes, so [Parse] inverts [Header] for
// every non-empty name.
//
// Decoding never fails outward: a missing header, a missing key, an unterminated
// quote, or an empty result all yield [DefaultFilename].
package disposition
