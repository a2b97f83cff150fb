package validators

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
)

// MaxBodyBytes caps JSON request bodies; completion photo lists are the largest legitimate payloads.
const MaxBodyBytes int64 = 1 << 20

// DecodeJSONBody strictly decodes one JSON object into dest and validates it.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := limitBody(r)
	defer drain(body)
	return decodeStrict(body, dest)
}

// DecodeJSONBodyStripping decodes the body after removing top-level keys for which strip
// returns true. The removed keys are returned sorted.
func DecodeJSONBodyStripping(r *http.Request, dest any, strip func(key string) bool) ([]string, error) {
	body := limitBody(r)
	defer drain(body)

	var raw map[string]json.RawMessage
	if err := decodeOne(json.NewDecoder(body), &raw); err != nil {
		return nil, err
	}

	var stripped []string
	for key := range raw {
		if strip(key) {
			stripped = append(stripped, key)
			delete(raw, key)
		}
	}
	sort.Strings(stripped)

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, invalidBody(err)
	}
	if err := decodeStrict(bytes.NewReader(buf), dest); err != nil {
		return nil, err
	}
	return stripped, nil
}

func limitBody(r *http.Request) io.ReadCloser {
	return http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

func decodeStrict(body io.Reader, dest any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decodeOne(decoder, dest); err != nil {
		return err
	}
	return Struct(dest)
}

func decodeOne(decoder *json.Decoder, dest any) error {
	if err := decoder.Decode(dest); err != nil {
		return invalidBody(err)
	}
	if decoder.More() {
		return invalidBody(errors.New("body must contain a single JSON object"))
	}
	return nil
}

func invalidBody(err error) *pkgerrors.Error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	case errors.As(err, &tooLarge):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large").
			WithDetails(map[string]any{"limit_bytes": tooLarge.Limit})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
}
