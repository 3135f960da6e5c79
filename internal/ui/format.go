package ui

import (
	"regexp"
	"strings"

	"github.com/aethra/glow/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCurrency is the symbol used for currency fields without a code.
const DefaultCurrency = "$"

var (
	printer    = message.NewPrinter(language.English)
	whitespace = regexp.MustCompile(`\s+`)
)

// Chip is a labelled badge for select and reference values.
type Chip struct {
	Label string
	Class string
}

// Cell is one formatted table cell. Chips, when present, replace Text.
type Cell struct {
	Text    string
	Chips   []Chip
	Numeric bool
}

// FormatCell renders a raw row value for a field. Missing values render empty.
func FormatCell(f *models.FieldDescriptor, v any) Cell {
	if v == nil {
		return Cell{}
	}
	if s, ok := v.(string); ok && s == "" {
		return Cell{}
	}

	switch f.Type {
	case models.FieldNumber:
		n, ok := models.AsFloat(v)
		if !ok {
			return Cell{Text: models.Stringify(v)}
		}
		return Cell{Text: FormatNumber(f, n), Numeric: true}
	case models.FieldSelect, models.FieldReference:
		return Cell{Chips: chips(f, v)}
	}
	return Cell{Text: models.Stringify(v)}
}

// FormatNumber applies the field's number format. Currency is the default.
func FormatNumber(f *models.FieldDescriptor, n float64) string {
	switch f.Format {
	case models.FormatPercent:
		if n >= 0 && n <= 1 {
			n *= 100
		}
		return decimal(n) + "%"
	case models.FormatNumber:
		return decimal(n)
	}
	symbol := f.CurrencyCode
	if symbol == "" {
		symbol = DefaultCurrency
	}
	return symbol + decimal(n)
}

func decimal(n float64) string {
	return printer.Sprint(number.Decimal(n, number.MaxFractionDigits(3)))
}

// chips renders every member of a multi field, or the first member otherwise.
// Comma-separated strings count as lists.
func chips(f *models.FieldDescriptor, v any) []Chip {
	members := models.AsList(v)
	if s, ok := v.(string); ok && strings.Contains(s, ",") {
		members = members[:0:0]
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				members = append(members, part)
			}
		}
	}
	if len(members) == 0 {
		return nil
	}
	if !f.Multi {
		members = members[:1]
	}

	out := make([]Chip, 0, len(members))
	for _, m := range members {
		out = append(out, chip(f, m))
	}
	return out
}

func chip(f *models.FieldDescriptor, v any) Chip {
	label := models.Stringify(v)
	opt, found := f.Option(v)
	if found {
		label = opt.Label
	}
	class := "chip-default"
	switch {
	case found && strings.TrimSpace(opt.ChipClass) != "":
		class = whitespace.ReplaceAllString(strings.TrimSpace(opt.ChipClass), "-")
	case f.ChipByValue:
		class = whitespace.ReplaceAllString(strings.ToLower(label), "-")
	}
	return Chip{Label: label, Class: class}
}
