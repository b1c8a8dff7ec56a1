// Package commune loads the commune reference table: the selection directory
// and the full descriptive record of a single commune.
package commune

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evcraddock/immo/internal/coerce"
	"github.com/evcraddock/immo/internal/query"
	"github.com/evcraddock/immo/internal/schema"
)

var (
	// ErrNotFound means a well-formed query matched no reference row.
	ErrNotFound = errors.New("commune not found")
	// ErrNoData means the reference table returned no rows at all.
	ErrNoData = errors.New("commune table is empty")
)

// Commune is one row of the reference table.
type Commune struct {
	InseeCode  string `json:"insee_code"`
	PostalCode string `json:"postal_code"`
	Name       string `json:"name"`
	Label      string `json:"label"`

	// Attributes holds numeric columns. A nil value means the column is
	// present but empty or unparseable.
	Attributes map[string]*float64 `json:"attributes,omitempty"`
	// Text holds non-numeric columns such as TYPPRED.
	Text map[string]string `json:"text,omitempty"`

	// Matches is the number of reference rows sharing this record's join key.
	Matches int `json:"matches,omitempty"`
}

// Attribute returns a numeric attribute and whether it has a value.
func (c *Commune) Attribute(name string) (float64, bool) {
	v, ok := c.Attributes[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// JoinKey returns the code used to join this commune with its sales.
func (c *Commune) JoinKey(m schema.Mapping) string {
	if m.JoinOnInsee() {
		return c.InseeCode
	}
	return c.PostalCode
}

// fromRow builds a Commune from a reference row.
func fromRow(row query.Row, m schema.Mapping) Commune {
	c := Commune{
		InseeCode:  coerce.Code(row[m.InseeColumn]),
		PostalCode: coerce.Code(row[m.PostalColumn]),
		Name:       strings.TrimSpace(fmt.Sprint(valueOr(row[m.NameColumn], ""))),
	}
	c.Label = label(c.Name, c.PostalCode)

	for k, v := range row {
		if k == m.InseeColumn || k == m.PostalColumn || k == m.NameColumn {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" && coerce.Number(s) == nil {
			if c.Text == nil {
				c.Text = map[string]string{}
			}
			c.Text[k] = s
			continue
		}
		if c.Attributes == nil {
			c.Attributes = map[string]*float64{}
		}
		c.Attributes[k] = coerce.Number(v)
	}
	return c
}

func label(name, postal string) string {
	if postal == "" {
		return name
	}
	return name + " (" + postal + ")"
}

func valueOr(v, fallback any) any {
	if v == nil {
		return fallback
	}
	return v
}
