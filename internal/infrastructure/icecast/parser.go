package icecast

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"iceflux/internal/core/domain"
	apperrors "iceflux/pkg/errors"
)

type icestatsDocument struct {
	XMLName xml.Name        `xml:"icestats"`
	Sources []sourceElement `xml:"source"`
}

// sourceElement mirrors one <source> entry. Unknown children are ignored by the decoder.
type sourceElement struct {
	MountAttr   *string `xml:"mount,attr"`
	MountElem   *string `xml:"mount"`
	Fallback    *string `xml:"fallback"`
	Listeners   *string `xml:"listeners"`
	ContentType *string `xml:"content-type"`
}

// Parser decodes the admin/listmounts XML document.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse returns every <source> of the document as a mount record, in document order.
// Any structural problem fails the whole document.
func (p *Parser) Parse(raw string) (domain.StatusSnapshot, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))

	var doc icestatsDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.StatusSnapshot{}, apperrors.NewParseError(err, "empty status document")
		}
		return domain.StatusSnapshot{}, apperrors.NewParseError(err, "malformed status document")
	}
	if err := expectEnd(dec); err != nil {
		return domain.StatusSnapshot{}, apperrors.NewParseError(err, "malformed status document")
	}

	snapshot := domain.StatusSnapshot{Mounts: make([]domain.MountRecord, 0, len(doc.Sources))}
	for i, src := range doc.Sources {
		record, err := src.toRecord()
		if err != nil {
			return domain.StatusSnapshot{}, apperrors.NewParseError(err, fmt.Sprintf("invalid source %d", i)).
				WithContext("index", i)
		}
		snapshot.Mounts = append(snapshot.Mounts, record)
	}
	return snapshot, nil
}

func (s sourceElement) toRecord() (domain.MountRecord, error) {
	if s.Listeners == nil || strings.TrimSpace(*s.Listeners) == "" {
		return domain.MountRecord{}, errors.New("missing listeners")
	}
	listeners, err := strconv.ParseInt(strings.TrimSpace(*s.Listeners), 10, 64)
	if err != nil {
		return domain.MountRecord{}, fmt.Errorf("listeners %q is not an integer", *s.Listeners)
	}
	if listeners < 0 {
		return domain.MountRecord{}, fmt.Errorf("listeners %d is negative", listeners)
	}
	if s.ContentType == nil {
		return domain.MountRecord{}, errors.New("missing content-type")
	}

	// A blank attribute defers to the <mount> child and otherwise counts as empty.
	mount := s.MountAttr
	if mount == nil || strings.TrimSpace(*mount) == "" {
		mount = trimmed(mount)
		if elem := trimmed(s.MountElem); elem != nil {
			mount = elem
		}
	}

	return domain.MountRecord{
		Mount:       mount,
		Fallback:    trimmed(s.Fallback),
		Listeners:   listeners,
		ContentType: strings.TrimSpace(*s.ContentType),
	}, nil
}

// expectEnd rejects anything but whitespace, comments and processing instructions after
// the root element.
func expectEnd(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(strings.TrimSpace(string(t))) != 0 {
				return errors.New("unexpected text after root element")
			}
		default:
			return errors.New("unexpected content after root element")
		}
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
