package library

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plmigrate/internal/shared"
	"howett.net/plist"
)

// DecodeFile reads and decodes the library export at path.
func DecodeFile(path string) (Value, error) {
	data, err := shared.VerifyAndReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// Decode reads a property list from r. See [DecodeBytes].
func Decode(r io.Reader) (Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read export: %v", shared.ErrInvalidInput, err)
	}
	return DecodeBytes(data)
}

var utf8BOM = []byte("\xEF\xBB\xBF")

// DecodeBytes decodes an XML, binary or OpenStep property list.
//
// XML dictionaries keep document order, with or without a leading byte order mark.
// Binary and OpenStep dictionaries have their keys sorted.
func DecodeBytes(data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(data), utf8BOM))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty export", shared.ErrInvalidInput)
	}

	if bytes.HasPrefix(trimmed, []byte("<")) && !bytes.HasPrefix(trimmed, []byte("<?xml")) && !bytes.Contains(trimmed, []byte("<plist")) {
		return nil, fmt.Errorf("%w: not a property list", shared.ErrInvalidInput)
	}

	if bytes.HasPrefix(trimmed, []byte("<")) {
		v, err := decodeXML(bytes.NewReader(trimmed))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		return v, nil
	}

	var raw any
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode property list: %v", shared.ErrInvalidInput, err)
	}
	v, err := fromNative(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return v, nil
}

// fromNative converts the generic values produced by howett.net/plist.
func fromNative(raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case int64:
		return Integer(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return Real(float64(v)), nil
		}
		return Integer(int64(v)), nil
	case float64:
		return Real(v), nil
	case float32:
		return Real(float64(v)), nil
	case time.Time:
		return Date(v), nil
	case []byte:
		return Data(v), nil
	case plist.UID:
		return Integer(int64(v)), nil
	case []any:
		arr := make(Array, 0, len(v))
		for _, item := range v {
			child, err := fromNative(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, child)
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		d := NewDict()
		for _, k := range keys {
			child, err := fromNative(v[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			d.Set(k, child)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported property list value %T", raw)
	}
}

// decodeXML parses an XML property list with a token decoder so dictionary order survives.
func decodeXML(r io.Reader) (Value, error) {
	dec := xml.NewDecoder(r)

	start, err := nextStart(dec)
	if err == io.EOF {
		return nil, fmt.Errorf("no <plist> element")
	}
	if err != nil {
		return nil, err
	}
	if start.Name.Local != "plist" {
		return nil, fmt.Errorf("expected <plist>, got <%s>", start.Name.Local)
	}

	child, err := nextStart(dec)
	if err != nil {
		return nil, fmt.Errorf("empty <plist>: %w", err)
	}
	return parseValue(dec, child)
}

// nextStart skips to the next start element.
func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func parseValue(dec *xml.Decoder, start xml.StartElement) (Value, error) {
	switch start.Name.Local {
	case "dict":
		return parseDict(dec)
	case "array":
		return parseArray(dec)
	case "true", "false":
		if err := dec.Skip(); err != nil {
			return nil, err
		}
		return Bool(start.Name.Local == "true"), nil
	}

	text, err := readText(dec)
	if err != nil {
		return nil, err
	}

	switch start.Name.Local {
	case "string":
		return String(text), nil
	case "integer":
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(strings.TrimSpace(text), 10, 64)
			if uerr != nil {
				return nil, fmt.Errorf("bad <integer> %q: %w", text, err)
			}
			return Real(float64(u)), nil
		}
		return Integer(n), nil
	case "real":
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("bad <real> %q: %w", text, err)
		}
		return Real(f), nil
	case "date":
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("bad <date> %q: %w", text, err)
		}
		return Date(t), nil
	case "data":
		clean := strings.Join(strings.Fields(text), "")
		b, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("bad <data>: %w", err)
		}
		return Data(b), nil
	default:
		return nil, fmt.Errorf("unexpected element <%s>", start.Name.Local)
	}
}

func parseDict(dec *xml.Decoder) (Value, error) {
	d := NewDict()
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("unterminated <dict>: %w", err)
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return d, nil
		case xml.StartElement:
			if t.Name.Local != "key" {
				return nil, fmt.Errorf("expected <key> in <dict>, got <%s>", t.Name.Local)
			}
			key, err := readText(dec)
			if err != nil {
				return nil, err
			}

			valStart, err := nextStart(dec)
			if err != nil {
				return nil, fmt.Errorf("missing value for key %q: %w", key, err)
			}
			v, err := parseValue(dec, valStart)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			d.Set(key, v)
		}
	}
}

func parseArray(dec *xml.Decoder) (Value, error) {
	arr := Array{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("unterminated <array>: %w", err)
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return arr, nil
		case xml.StartElement:
			v, err := parseValue(dec, t)
			if err != nil {
				return nil, fmt.Errorf("array item %d: %w", len(arr), err)
			}
			arr = append(arr, v)
		}
	}
}

// readText collects character data up to the current element's end tag.
func readText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			return sb.String(), nil
		case xml.StartElement:
			return "", fmt.Errorf("unexpected <%s> inside text element", t.Name.Local)
		}
	}
}
