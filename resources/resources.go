// Package resources bundles the clinical templates, FLAT compositions and
// synthetic patient lists used to provision demo domains.
package resources

import "embed"

// FS holds templates/, compositions/ and patients/.
//
//go:embed templates compositions patients
var FS embed.FS
