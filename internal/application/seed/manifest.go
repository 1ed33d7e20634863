package seed

import (
	"errors"
	"fmt"
	"strings"
)

// Entry describes the compositions committed against one template: Count
// files named by formatting PathPattern with 1..Count. A single-file entry
// may use a literal path.
type Entry struct {
	TemplateID  string `mapstructure:"template_id"`
	PathPattern string `mapstructure:"path_pattern"`
	Count       int    `mapstructure:"count"`
}

// Paths expands the entry into bundled composition paths.
func (e Entry) Paths() []string {
	if !strings.Contains(e.PathPattern, "%d") {
		return []string{e.PathPattern}
	}
	paths := make([]string, 0, e.Count)
	for i := 1; i <= e.Count; i++ {
		paths = append(paths, fmt.Sprintf(e.PathPattern, i))
	}
	return paths
}

// Manifest lists, in commit order, the compositions seeded for every patient.
type Manifest []Entry

// DefaultManifest commits 1 vital signs, 6 allergy, 12 lab order,
// 6 procedure and 12 lab result compositions per patient.
func DefaultManifest() Manifest {
	return Manifest{
		{TemplateID: "Vital Signs Encounter (Composition)", PathPattern: "compositions/vital-signs/vital_signs.json", Count: 1},
		{TemplateID: "IDCR Allergies List.v0", PathPattern: "compositions/allergies/allergies_%d.json", Count: 6},
		{TemplateID: "IDCR - Laboratory Order.v0", PathPattern: "compositions/orders/lab_order_%d.json", Count: 12},
		{TemplateID: "IDCR Procedures List.v0", PathPattern: "compositions/procedures/procedures_%d.json", Count: 6},
		{TemplateID: "IDCR - Laboratory Test Report.v0", PathPattern: "compositions/lab-results/lab_report_%d.json", Count: 12},
	}
}

// Total is the number of compositions committed per patient.
func (m Manifest) Total() int {
	n := 0
	for _, e := range m {
		n += len(e.Paths())
	}
	return n
}

// Validate rejects entries that cannot be expanded.
func (m Manifest) Validate() error {
	for i, e := range m {
		switch {
		case e.TemplateID == "":
			return fmt.Errorf("manifest entry %d: missing template id", i)
		case e.PathPattern == "":
			return fmt.Errorf("manifest entry %d: missing path pattern", i)
		case e.Count < 1:
			return fmt.Errorf("manifest entry %d: count must be positive", i)
		case e.Count > 1 && !strings.Contains(e.PathPattern, "%d"):
			return fmt.Errorf("manifest entry %d: pattern %q has no %%d for %d files", i, e.PathPattern, e.Count)
		}
	}
	return nil
}

// TemplateSet names the templates uploaded to a new domain.
type TemplateSet struct {
	// Baseline is uploaded to every domain; the explorer UI fails on a
	// domain without any template.
	Baseline string `mapstructure:"baseline"`
	// Clinical templates are uploaded, in order, when demo data is seeded.
	Clinical []string `mapstructure:"clinical"`
}

// DefaultTemplates returns the bundled template set.
func DefaultTemplates() TemplateSet {
	return TemplateSet{
		Baseline: "templates/problems/problems-template.xml",
		Clinical: []string{
			"templates/allergies/allergies-template.xml",
			"templates/lab-results/lab-results-template.xml",
			"templates/orders/orders-template.xml",
			"templates/vital-signs/vital-signs-template.xml",
			"templates/procedures/procedures-template.xml",
		},
	}
}

// For returns the templates to upload in order.
func (t TemplateSet) For(provision bool) []string {
	paths := []string{t.Baseline}
	if provision {
		paths = append(paths, t.Clinical...)
	}
	return paths
}

// Validate requires a baseline template.
func (t TemplateSet) Validate() error {
	if t.Baseline == "" {
		return errors.New("baseline template is required")
	}
	return nil
}
