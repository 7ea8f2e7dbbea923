package importer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// defaultEncoding is used when the detector has no guess at all.
const defaultEncoding = "ISO-8859-1"

// Resolver turns the raw bytes of an upload into text.
//
// The detector's best guess is tried first, then each of Fallbacks in order. A candidate is accepted
// when the decoded text contains HeaderToken and at least one rune of Scripts (skipped when Scripts is empty).
// Detectors are unreliable on small files mixing latin headers with localized data, hence the fallbacks.
type Resolver struct {
	HeaderToken string
	Scripts     []*unicode.RangeTable
	Fallbacks   []string

	detector *chardet.Detector
}

// NewResolver builds a Resolver from unicode script names (e.g. "Han", "Hiragana") and encoding names.
func NewResolver(headerToken string, scripts, fallbacks []string) (*Resolver, error) {
	r := &Resolver{
		HeaderToken: headerToken,
		Fallbacks:   fallbacks,
		detector:    chardet.NewTextDetector(),
	}
	for _, name := range scripts {
		tbl, ok := unicode.Scripts[name]
		if !ok {
			return nil, errors.Errorf("unknown unicode script %q", name)
		}
		r.Scripts = append(r.Scripts, tbl)
	}
	for _, name := range fallbacks {
		if _, err := lookupEncoding(name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Decode returns the decoded text and the name of the encoding that produced it.
func (r *Resolver) Decode(data []byte) (string, string, error) {
	tried := make(map[string]bool, len(r.Fallbacks)+1)
	for _, name := range r.candidates(data) {
		key := strings.ToLower(name)
		if tried[key] {
			continue
		}
		tried[key] = true

		text, err := decode(data, name)
		if err != nil {
			continue
		}
		if r.plausible(text) {
			return text, name, nil
		}
	}
	return "", "", ErrDecodingFailure
}

func (r *Resolver) candidates(data []byte) []string {
	guess := defaultEncoding
	if res, err := r.detector.DetectBest(data); err == nil && res != nil && res.Charset != "" {
		guess = res.Charset
	}
	return append([]string{guess}, r.Fallbacks...)
}

func (r *Resolver) plausible(text string) bool {
	if strings.ContainsRune(text, utf8.RuneError) {
		return false
	}
	if r.HeaderToken != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(r.HeaderToken)) {
		return false
	}
	if len(r.Scripts) == 0 {
		return true
	}
	for _, c := range text {
		if unicode.In(c, r.Scripts...) {
			return true
		}
	}
	return false
}

func decode(data []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", errors.Wrap(err, "decoding "+name)
	}
	return string(out), nil
}

// lookupEncoding resolves WHATWG and IANA style names, e.g. "Shift_JIS", "GB-18030" or "ISO-8859-1".
func lookupEncoding(name string) (encoding.Encoding, error) {
	if strings.EqualFold(name, defaultEncoding) {
		return charmap.ISO8859_1, nil
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(strings.Replace(name, "-", "", -1)); err == nil {
		return enc, nil
	}
	return nil, errors.Errorf("unsupported encoding %q", name)
}
