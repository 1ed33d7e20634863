// Package patient holds the synthetic patients used to seed demo domains.
package patient

import "strings"

// Patient is a synthetic demographic record. Field tags name the CSV
// headers of the bundled seed files.
type Patient struct {
	NHSNumber   string `mapstructure:"nhsNumber" json:"nhsNumber"`
	Title       string `mapstructure:"title" json:"title"`
	FirstName   string `mapstructure:"firstName" json:"firstName"`
	LastName    string `mapstructure:"lastName" json:"lastName"`
	Gender      string `mapstructure:"gender" json:"gender"`
	DateOfBirth string `mapstructure:"dateOfBirth" json:"dateOfBirth"`
	Address1    string `mapstructure:"address1" json:"address1"`
	Address2    string `mapstructure:"address2" json:"address2"`
	Address3    string `mapstructure:"address3" json:"address3"`
	Postcode    string `mapstructure:"postcode" json:"postcode"`
	Telephone   string `mapstructure:"telephone" json:"telephone"`
}

// FullName joins title, first and last name.
func (p Patient) FullName() string {
	return strings.Join(strings.Fields(p.Title+" "+p.FirstName+" "+p.LastName), " ")
}

// AddressLines returns the non-empty address lines followed by the postcode.
func (p Patient) AddressLines() []string {
	var lines []string
	for _, l := range []string{p.Address1, p.Address2, p.Address3, p.Postcode} {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
