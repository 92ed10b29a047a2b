package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// ShippingAddress is the Brazilian delivery address attached to an order. The
// zipcode and uf validation tags are registered by pkg/validation.
type ShippingAddress struct {
	Street       string `json:"street" validate:"required,max=200"`
	Number       string `json:"number" validate:"required,max=20"`
	Complement   string `json:"complement,omitempty" validate:"max=120"`
	Neighborhood string `json:"neighborhood" validate:"required,max=120"`
	City         string `json:"city" validate:"required,max=120"`
	State        string `json:"state" validate:"required,uf"`
	ZipCode      string `json:"zip_code" validate:"required,zipcode"`
}

// String renders "Rua X, 10, apto 2 - Centro, São Paulo/SP - CEP: 01001000".
func (a ShippingAddress) String() string {
	var b strings.Builder
	b.WriteString(a.Street)
	b.WriteString(", ")
	b.WriteString(a.Number)
	if a.Complement != "" {
		b.WriteString(", ")
		b.WriteString(a.Complement)
	}
	fmt.Fprintf(&b, " - %s, %s/%s - CEP: %s", a.Neighborhood, a.City, a.State, a.ZipCode)
	return b.String()
}

// Trimmed trims every field and upper-cases the state. Validate the trimmed
// address so whitespace-only fields count as missing.
func (a ShippingAddress) Trimmed() ShippingAddress {
	return ShippingAddress{
		Street:       strings.TrimSpace(a.Street),
		Number:       strings.TrimSpace(a.Number),
		Complement:   strings.TrimSpace(a.Complement),
		Neighborhood: strings.TrimSpace(a.Neighborhood),
		City:         strings.TrimSpace(a.City),
		State:        strings.ToUpper(strings.TrimSpace(a.State)),
		ZipCode:      strings.TrimSpace(a.ZipCode),
	}
}

// Normalized is Trimmed with non-digits stripped from the zip code.
func (a ShippingAddress) Normalized() ShippingAddress {
	out := a.Trimmed()
	out.ZipCode = DigitsOnly(out.ZipCode)
	return out
}

// UnmarshalJSON accepts either an address object or a JSON string holding one,
// since the backend stores addresses as serialized text on some endpoints.
func (a *ShippingAddress) UnmarshalJSON(data []byte) error {
	type plain ShippingAddress
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if strings.TrimSpace(raw) == "" {
			*a = ShippingAddress{}
			return nil
		}
		data = []byte(raw)
	}
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode shipping address: %w", err)
	}
	*a = ShippingAddress(decoded)
	return nil
}

// DigitsOnly drops every non-digit rune.
func DigitsOnly(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, value)
}
