package types

import (
	"fmt"
	"strings"
)

// ShippingAddress is the delivery snapshot captured at checkout. It is stored
// on the order as jsonb so later profile edits never rewrite history.
type ShippingAddress struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// Validate checks the fields required to dispatch a shipment.
func (a ShippingAddress) Validate() error {
	missing := []string{}
	if strings.TrimSpace(a.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(a.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.Province) == "" {
		missing = append(missing, "province")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if len(missing) > 0 {
		return fmt.Errorf("shipping address: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
