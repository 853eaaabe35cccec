package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	fileshare "github.com/SuperSection/fileshare"
	"github.com/SuperSection/fileshare/disposition"
	"github.com/sirupsen/logrus"
)

const (
	fileField = "file"
	sizeField = "size"

	// multipartSlack covers part headers and boundaries on top of the payload.
	multipartSlack = 1 << 20
)

var errMissingFile = errors.New("missing file part")

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		s.writeError(w, fmt.Errorf("%w: expected multipart/form-data", fileshare.ErrInvalidInput))
		return
	}
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartSlack)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", fileshare.ErrInvalidInput, err))
		return
	}

	up, cleanup, err := s.readUpload(mr)
	defer cleanup()
	if err != nil {
		s.writeError(w, err)
		return
	}

	ticket, err := s.engine.CreateSession(r.Context(), up)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"function": "handleUpload",
			"filename": up.Filename,
		}).WithError(err).Debug("upload refused")
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newUploadResponse(ticket))
}

// readUpload walks the multipart stream up to the file part. With a preceding size
// field the part is streamed to the engine as is; without one it is spooled to a
// temporary file first so its length is known.
func (s *Server) readUpload(mr *multipart.Reader) (fileshare.Upload, func(), error) {
	noop := func() {}
	size := int64(-1)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return fileshare.Upload{}, noop, fmt.Errorf("%w: %v", fileshare.ErrInvalidInput, errMissingFile)
		}
		if err != nil {
			return fileshare.Upload{}, noop, uploadReadError(err)
		}

		switch part.FormName() {
		case sizeField:
			raw, err := io.ReadAll(io.LimitReader(part, 32))
			if err != nil {
				return fileshare.Upload{}, noop, uploadReadError(err)
			}
			size, err = strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
			if err != nil || size < 0 {
				return fileshare.Upload{}, noop, fmt.Errorf("%w: bad size field", fileshare.ErrInvalidInput)
			}
		case fileField:
			name := part.FileName()
			if name == "" {
				name = disposition.UnnamedFile
			}
			up := fileshare.Upload{Filename: disposition.Sanitize(name), Size: size, Body: part}
			if size >= 0 {
				return up, noop, nil
			}
			return s.spool(up)
		}
	}
}

func (s *Server) spool(up fileshare.Upload) (fileshare.Upload, func(), error) {
	f, err := os.CreateTemp(s.spoolDir, "fileshare-spool-*")
	if err != nil {
		return fileshare.Upload{}, func() {}, fmt.Errorf("create spool file: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}

	src := up.Body
	if s.maxUpload > 0 {
		src = io.LimitReader(src, s.maxUpload+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return fileshare.Upload{}, cleanup, uploadReadError(err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fileshare.Upload{}, cleanup, fmt.Errorf("rewind spool file: %w", err)
	}

	up.Size = n
	up.Body = f
	return up, cleanup, nil
}

func uploadReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", fileshare.ErrTransferFailed, err)
}
