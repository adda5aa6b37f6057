package relay

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/netgeist/sttrelay/internal/audio"
)

// formOverhead is the room left for multipart boundaries and the non-file
// fields on top of the audio limit.
const formOverhead = 1 << 20

// readPayload parses the multipart body and extracts the `file` field. An
// uploaded file part takes precedence over a text value of the same name,
// whatever their order in the body.
// Callers must call RemoveAll on r.MultipartForm when it is non-nil.
func readPayload(w http.ResponseWriter, r *http.Request) (audio.Payload, *Error) {
	r.Body = http.MaxBytesReader(w, r.Body, audio.MaxBytes+formOverhead)

	if err := r.ParseMultipartForm(audio.MaxBytes + formOverhead); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return audio.Payload{}, badRequest(msgUploadTooLarge, err)
		}
		return audio.Payload{}, badRequest(msgNoAudio, err)
	}

	form := r.MultipartForm
	if fhs := form.File["file"]; len(fhs) > 0 {
		fh := fhs[0]
		if fh.Size > audio.MaxBytes {
			return audio.Payload{}, badRequest(msgUploadTooLarge, audio.ErrTooLarge)
		}
		data, err := readFileHeader(fh)
		if err != nil {
			return audio.Payload{}, badRequest(msgNoAudio, err)
		}
		return audio.Blob(data), nil
	}

	if vals := form.Value["file"]; len(vals) > 0 && vals[0] != "" {
		return audio.URLReference(vals[0]), nil
	}

	return audio.Payload{}, badRequest(msgNoAudio, nil)
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	return data, nil
}
