package world

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed text.yaml
var defaultText []byte

var ErrInvalidText = errors.New("invalid text catalog")

// TextCatalog is the display text the generator draws names from. It stands
// in for the provider catalogs (airlines, insurers, advisors) a real
// deployment would query.
type TextCatalog struct {
	Cities          []string `yaml:"cities"`
	Airlines        []string `yaml:"airlines"`
	Hotels          []string `yaml:"hotels"`
	Insurers        []string `yaml:"insurers"`
	InsurancePlans  []string `yaml:"insurance_plans"`
	GiftItems       []string `yaml:"gift_items"`
	Recipients      []string `yaml:"recipients"`
	Occasions       []string `yaml:"occasions"`
	LeadNames       []string `yaml:"lead_names"`
	Companies       []string `yaml:"companies"`
	Titles          []string `yaml:"titles"`
	Channels        []string `yaml:"channels"`
	Funds           []string `yaml:"funds"`
	InvestmentKinds []string `yaml:"investment_kinds"`
}

// DefaultText returns the embedded catalog.
func DefaultText() TextCatalog {
	text, err := ParseText(defaultText)
	if err != nil {
		panic(fmt.Sprintf("world: embedded text catalog invalid: %v", err))
	}
	return text
}

// LoadText reads a catalog from a YAML file.
func LoadText(path string) (TextCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TextCatalog{}, fmt.Errorf("load text catalog: %w", err)
	}
	return ParseText(data)
}

// ParseText decodes a YAML catalog and validates it.
func ParseText(data []byte) (TextCatalog, error) {
	var text TextCatalog
	if err := yaml.Unmarshal(data, &text); err != nil {
		return TextCatalog{}, fmt.Errorf("parse text catalog: %w", err)
	}
	if err := text.Validate(); err != nil {
		return TextCatalog{}, fmt.Errorf("parse text catalog: %w", err)
	}
	return text, nil
}

// Validate checks that every list is populated and that there are at least
// two cities, an origin and a destination.
func (t TextCatalog) Validate() error {
	lists := []struct {
		name string
		list []string
	}{
		{"cities", t.Cities},
		{"airlines", t.Airlines},
		{"hotels", t.Hotels},
		{"insurers", t.Insurers},
		{"insurance_plans", t.InsurancePlans},
		{"gift_items", t.GiftItems},
		{"recipients", t.Recipients},
		{"occasions", t.Occasions},
		{"lead_names", t.LeadNames},
		{"companies", t.Companies},
		{"titles", t.Titles},
		{"channels", t.Channels},
		{"funds", t.Funds},
		{"investment_kinds", t.InvestmentKinds},
	}
	for _, l := range lists {
		if len(l.list) == 0 {
			return fmt.Errorf("%w: %s is empty", ErrInvalidText, l.name)
		}
	}
	if len(t.Cities) < 2 {
		return fmt.Errorf("%w: need at least two cities", ErrInvalidText)
	}
	return nil
}
