package paipu

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/naga"
)

// Document is a game record in tenhou.net/6 JSON form, as Majsoul mirrors export it.
type Document struct {
	Title json.RawMessage   `json:"title,omitempty"`
	Name  []string          `json:"name"`
	Rule  json.RawMessage   `json:"rule"`
	Log   []json.RawMessage `json:"log"`

	rounds []Selector
}

// Parse validates raw against the record schema and decodes it.
func Parse(raw []byte) (*Document, error) {
	if err := validate(raw); err != nil {
		return nil, err
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, common.InvalidInputf("decode paipu: %v", err)
	}
	d.rounds = make([]Selector, 0, len(d.Log))
	for i, l := range d.Log {
		var round []json.RawMessage
		if err := json.Unmarshal(l, &round); err != nil || len(round) == 0 {
			return nil, common.InvalidInputf("paipu round %d is malformed", i)
		}
		var header []int
		if err := json.Unmarshal(round[0], &header); err != nil || len(header) < 2 {
			return nil, common.InvalidInputf("paipu round %d has no kyoku/honba header", i)
		}
		d.rounds = append(d.rounds, Exact(header[0], header[1]))
	}
	return &d, nil
}

// Players returns the player names in seat order.
func (d *Document) Players() []string { return d.Name }

// Rounds lists the (kyoku, honba) of every round in play order.
func (d *Document) Rounds() []Selector {
	out := make([]Selector, len(d.rounds))
	copy(out, d.rounds)
	return out
}

// GameRule is tonpuu when the rule display names an east-only game.
func (d *Document) GameRule() naga.GameRule {
	var rule struct {
		Disp string `json:"disp"`
	}
	_ = json.Unmarshal(d.Rule, &rule)
	if strings.Contains(rule.Disp, "東") {
		return naga.Tonpuu
	}
	return naga.Hanchan
}

// Select resolves sel to the index of one round. With the honba omitted the kyoku
// must have exactly one round; anything but a single match is a SelectionError.
func (d *Document) Select(sel Selector) (int, Selector, error) {
	match := -1
	for i, r := range d.rounds {
		if r.Kyoku != sel.Kyoku || (sel.Honba != nil && *sel.Honba != *r.Honba) {
			continue
		}
		if match >= 0 {
			return -1, Selector{}, &SelectionError{Requested: sel, Available: d.Rounds()}
		}
		match = i
	}
	if match < 0 {
		return -1, Selector{}, &SelectionError{Requested: sel, Available: d.Rounds()}
	}
	return match, d.rounds[match], nil
}

// Segment returns a copy of the record holding only round i.
func (d *Document) Segment(i int) (*Document, error) {
	if i < 0 || i >= len(d.Log) {
		return nil, fmt.Errorf("round %d out of range", i)
	}
	return &Document{
		Title:  d.Title,
		Name:   d.Name,
		Rule:   d.Rule,
		Log:    []json.RawMessage{d.Log[i]},
		rounds: []Selector{d.rounds[i]},
	}, nil
}

// SelectionError lists the rounds a caller can choose from when a selector does not
// identify exactly one.
type SelectionError struct {
	Requested Selector
	Available []Selector
}

func (e *SelectionError) Error() string {
	names := make([]string, len(e.Available))
	for i, s := range e.Available {
		names[i] = s.String()
	}
	return fmt.Sprintf("no single round matches %s, choose one of: %s", e.Requested, strings.Join(names, ", "))
}

func (e *SelectionError) Unwrap() error { return common.ErrAmbiguousSelection }
