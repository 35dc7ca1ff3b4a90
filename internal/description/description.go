package description

import (
	"bytes"
	"strings"

	"github.com/clbanning/mxj/v2"
	"golang.org/x/net/html/charset"
)

func init() {
	// Many devices declare ISO-8859-1 or windows-1252 descriptions
	mxj.XmlCharsetReader = charset.NewReaderLabel
}

// Description is a device description document as a nested map.
//
// Element names have their namespace prefix stripped. Attributes are stored
// under "@name". Text is stored under "#text" when the element also has
// children or attributes, otherwise it is the value itself. Repeated sibling
// elements become a []any.
type Description map[string]any

// Empty reports whether the description holds nothing
func (d Description) Empty() bool {
	return len(d) == 0
}

// Device returns the "device" element, or nil when there is none
func (d Description) Device() map[string]any {
	device, _ := d["device"].(map[string]any)
	return device
}

// DeviceField returns a text field of the device element, e.g. "friendlyName"
func (d Description) DeviceField(name string) string {
	return Text(d.Device()[name])
}

// Text returns the text content of a converted element, or "" when it has none
func Text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		s, _ := t["#text"].(string)
		return s
	default:
		return ""
	}
}

// Parse converts a description document. Only the content of the "root"
// element is kept; a document with a different root yields an empty
// description.
func Parse(body []byte) (Description, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &FetchError{Type: ErrTypeEmptyBody, Message: "empty description document"}
	}

	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, NewParseError("malformed description XML", err)
	}

	root, ok := m["root"].(map[string]any)
	if !ok {
		return Description{}, nil
	}
	return Description(convert(root).(map[string]any)), nil
}

// convert rewrites mxj's "-attr" keys to "@attr" and drops the default
// namespace declaration.
func convert(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if attr, ok := strings.CutPrefix(k, "-"); ok {
				if attr == "xmlns" {
					continue
				}
				k = "@" + attr
			}
			out[k] = convert(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = convert(val)
		}
		return out
	default:
		return v
	}
}
