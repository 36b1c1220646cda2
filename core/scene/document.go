package scene

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Paint is a CSS color. Gradients & patterns decode to the empty paint.
type Paint string

func (p *Paint) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*p = ""
		return nil
	}
	*p = Paint(strings.TrimSpace(s))
	return nil
}

// IsNone reports whether nothing should be painted.
func (p Paint) IsNone() bool {
	s := strings.ToLower(string(p))
	return s == "" || s == "none" || s == "transparent"
}

// Weight is a CSS font weight, authored either as a keyword or a number.
type Weight string

func (w *Weight) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*w = Weight(strings.ToLower(strings.TrimSpace(s)))
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		*w = ""
		return nil
	}
	*w = Weight(strconv.Itoa(int(n)))
	return nil
}

func (w Weight) Bold() bool {
	switch w {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(string(w))
	return err == nil && n >= 600
}

// number tolerates sizes authored as strings.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = number(f)
			return nil
		}
	}
	*n = 0
	return nil
}

var textTypes = map[string]bool{
	"text":       true,
	"itext":      true,
	"textbox":    true,
	"fabrictext": true,
}

// Classify maps an editor object type tag to the node kind it decodes to.
// Tags are matched case-insensitively, ignoring dashes ("i-text" == "IText").
func Classify(typeTag string) Kind {
	t := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(typeTag)))
	switch {
	case textTypes[t]:
		return KindText
	case t == "image" || t == "fabricimage":
		return KindImage
	case t == "group" || t == "activeselection":
		return KindGroup
	default:
		return KindShape
	}
}

type (
	docHeader struct {
		Width           number            `json:"width"`
		Height          number            `json:"height"`
		Background      Paint             `json:"background"`
		BackgroundImage json.RawMessage   `json:"backgroundImage"`
		Objects         []json.RawMessage `json:"objects"`
	}

	objHeader struct {
		Type    string `json:"type"`
		Visible *bool  `json:"visible"`
	}

	groupDoc struct {
		Type string `json:"type"`
		Frame
		Objects []json.RawMessage `json:"objects"`
	}
)

var errHidden = errors.New("hidden object")

// decodeNode decodes a single editor object; skipped reports undecodable descendants.
func decodeNode(raw json.RawMessage) (node Node, skipped int, err error) {
	var head objHeader
	if err = json.Unmarshal(raw, &head); err != nil {
		return nil, 0, errors.Wrap(err, "decoding object header")
	}
	if head.Visible != nil && !*head.Visible {
		return nil, 0, errHidden
	}

	switch Classify(head.Type) {
	case KindText:
		n := new(Text)
		if err = json.Unmarshal(raw, n); err != nil {
			return nil, 0, errors.Wrapf(err, "decoding %s", head.Type)
		}
		return n, 0, nil
	case KindImage:
		n := new(Image)
		if err = json.Unmarshal(raw, n); err != nil {
			return nil, 0, errors.Wrapf(err, "decoding %s", head.Type)
		}
		return n, 0, nil
	case KindGroup:
		var gd groupDoc
		if err = json.Unmarshal(raw, &gd); err != nil {
			return nil, 0, errors.Wrapf(err, "decoding %s", head.Type)
		}
		children, skipped := decodeNodes(gd.Objects)
		return &Group{Type: gd.Type, Frame: gd.Frame, Children: children}, skipped, nil
	default:
		n := new(Shape)
		if err = json.Unmarshal(raw, n); err != nil {
			return nil, 0, errors.Wrapf(err, "decoding %s", head.Type)
		}
		return n, 0, nil
	}
}

func decodeNodes(raws []json.RawMessage) ([]Node, int) {
	nodes := make([]Node, 0, len(raws))
	var skipped int
	for _, raw := range raws {
		n, sk, err := decodeNode(raw)
		skipped += sk
		if err != nil {
			if err != errHidden {
				skipped++
			}
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, skipped
}
