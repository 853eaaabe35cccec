package disposition

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	names := []string{
		"notes.txt",
		"report final.pdf",
		"résumé (2).docx",
		"数据.csv",
		`say "hi".txt`,
		`back\slash`,
		`trailing\`,
		`"`,
		"a;b=c.txt",
		`filename="inner".txt`,
	}
	for _, name := range names {
		h := http.Header{}
		Set(h, name)
		if got := FilenameFromHeader(h); got != name {
			t.Fatalf("round trip of %q produced %q (header %q)", name, got, h.Get("Content-Disposition"))
		}
	}
}

func TestFilenameFromHeaderCaseInsensitive(t *testing.T) {
	headers := []http.Header{
		{"content-disposition": {`attachment; filename="a.bin"`}},
		{"CONTENT-DISPOSITION": {`attachment; filename="a.bin"`}},
		{"Content-Disposition": {`attachment; FileName="a.bin"`}},
	}
	for _, h := range headers {
		if got := FilenameFromHeader(h); got != "a.bin" {
			t.Fatalf("expected a.bin from %v, got %q", h, got)
		}
	}
}

func TestFilenameFromHeaderFallsBack(t *testing.T) {
	cases := map[string]http.Header{
		"missing header":    {},
		"empty values":      {"Content-Disposition": {}},
		"missing key":       {"Content-Disposition": {"attachment"}},
		"unterminated":      {"Content-Disposition": {`attachment; filename="abc`}},
		"dangling escape":   {"Content-Disposition": {`attachment; filename="abc\`}},
		"empty quoted":      {"Content-Disposition": {`attachment; filename=""`}},
		"empty after key":   {"Content-Disposition": {`attachment; filename=`}},
		"other header only": {"Content-Type": {`application/octet-stream`}},
	}
	for name, h := range cases {
		if got := FilenameFromHeader(h); got != DefaultFilename {
			t.Fatalf("%s: expected %q, got %q", name, DefaultFilename, got)
		}
	}
}

func TestParseMatchesKeyOnlyAtParameterStart(t *testing.T) {
	cases := map[string]string{
		`attachment; name="filename=evil"; filename="real.txt"`: "real.txt",
		`attachment; xfilename="x.txt"; filename="y.txt"`:       "y.txt",
		`attachment;filename="tight.txt"`:                       "tight.txt",
		`filename="first.txt"`:                                  "first.txt",
		`attachment; note="a \"filename=b\""; filename=c.txt`:   "c.txt",
	}
	for value, want := range cases {
		if got, ok := Parse(value); !ok || got != want {
			t.Fatalf("Parse(%q) = %q, %v; want %q", value, got, ok, want)
		}
	}

	h := http.Header{"Content-Disposition": {`attachment; xfilename="x.txt"`}}
	if got := FilenameFromHeader(h); got != DefaultFilename {
		t.Fatalf("suffix key matched, got %q", got)
	}
}

func TestParseBareToken(t *testing.T) {
	got, ok := Parse("attachment; filename=plain.txt; size=3")
	if !ok || got != "plain.txt" {
		t.Fatalf("expected plain.txt, got %q ok=%v", got, ok)
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"notes.txt", "with space", `quote".txt`, "ünïcödé", "..hidden"}
	for _, name := range valid {
		if err := Validate(name); err != nil {
			t.Fatalf("expected %q valid, got %v", name, err)
		}
	}

	invalid := []string{
		"",
		".",
		"..",
		"a/b",
		`a\b`,
		"line\nbreak",
		"carriage\rreturn",
		"nul\x00byte",
		"del\x7f",
		"bad\xffutf8",
		strings.Repeat("x", MaxFilenameBytes+1),
	}
	for _, name := range invalid {
		if err := Validate(name); !errors.Is(err, ErrInvalidFilename) {
			t.Fatalf("expected %q invalid, got %v", name, err)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"notes.txt":                 "notes.txt",
		"C:\\Users\\me\\doc.pdf":    "doc.pdf",
		"/etc/passwd":               "passwd",
		"dir/":                      UnnamedFile,
		"":                          UnnamedFile,
		"..":                        UnnamedFile,
		"evil\r\nX-Injected: 1.txt": "evilX-Injected: 1.txt",
		"  padded  ":                "padded",
	}
	for in, want := range tests {
		got := Sanitize(in)
		if got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", in, got, want)
		}
		if err := Validate(got); err != nil {
			t.Fatalf("Sanitize(%q) = %q does not validate: %v", in, got, err)
		}
	}

	long := Sanitize(strings.Repeat("é", MaxFilenameBytes))
	if len(long) > MaxFilenameBytes || Validate(long) != nil {
		t.Fatalf("long name not truncated cleanly: %d bytes", len(long))
	}
}

func FuzzHeaderRoundTrip(f *testing.F) {
	f.Add("notes.txt")
	f.Add(`a"b`)
	f.Add(`\\"`)
	f.Add("filename=\"x\"")

	f.Fuzz(func(t *testing.T, name string) {
		if name == "" {
			return
		}
		got, ok := Parse(Header(name))
		if !ok || got != name {
			t.Fatalf("round trip of %q produced %q ok=%v", name, got, ok)
		}
	})
}

func FuzzParseNeverPanics(f *testing.F) {
	f.Add(`attachment; filename="x"`)
	f.Add(`filename="\`)
	f.Add(`FILENAME=`)

	f.Fuzz(func(t *testing.T, value string) {
		name := FilenameFromHeader(http.Header{"Content-Disposition": {value}})
		if name == "" {
			t.Fatal("decoder returned an empty name")
		}
	})
}
