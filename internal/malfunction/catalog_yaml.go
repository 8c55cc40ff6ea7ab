package malfunction

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogDoc is the YAML shape of a malfunction catalog file.
type catalogDoc struct {
	Malfunctions     []templateDoc `yaml:"malfunctions"`
	MaintenanceParts []maintDoc    `yaml:"maintenance_parts"`
}

type templateDoc struct {
	Name        string   `yaml:"name"`
	Scopes      []string `yaml:"scopes"`
	Probability float64  `yaml:"probability"`
	Severity    struct {
		Min int `yaml:"min"`
		Max int `yaml:"max"`
	} `yaml:"severity"`
	Repair             map[string]repairDoc `yaml:"repair"`
	ResourceEffects    map[string]float64   `yaml:"resource_effects"`
	LifeSupportEffects map[string]float64   `yaml:"life_support_effects"`
	MedicalComplaints  map[string]float64   `yaml:"medical_complaints"`
	Parts              []partDoc            `yaml:"parts"`
	Impact             bool                 `yaml:"impact"`
}

type repairDoc struct {
	Work  float64 `yaml:"work"`
	Slots int     `yaml:"slots"`
}

type partDoc struct {
	Name        string  `yaml:"name"`
	Max         int     `yaml:"max"`
	Probability float64 `yaml:"probability"`
}

type maintDoc struct {
	Name        string   `yaml:"name"`
	Scopes      []string `yaml:"scopes"`
	Probability float64  `yaml:"probability"`
	Max         int      `yaml:"max"`
}

// LoadCatalog reads a catalog YAML file. A nil rnd uses the global
// math/rand source.
func LoadCatalog(path string, rnd Rand) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseCatalog(data, rnd)
}

// ParseCatalog builds a catalog from YAML bytes.
func ParseCatalog(data []byte, rnd Rand) (*StaticCatalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	if len(doc.Malfunctions) == 0 {
		return nil, fmt.Errorf("catalog: no malfunctions defined")
	}

	templates := make([]*Template, 0, len(doc.Malfunctions))
	for i, td := range doc.Malfunctions {
		t, err := td.toTemplate()
		if err != nil {
			return nil, fmt.Errorf("catalog: malfunction %d (%s): %w", i, td.Name, err)
		}
		templates = append(templates, t)
	}

	rules := make([]MaintenancePartRule, 0, len(doc.MaintenanceParts))
	for i, md := range doc.MaintenanceParts {
		if md.Name == "" {
			return nil, fmt.Errorf("catalog: maintenance part %d has no name", i)
		}
		maxNumber := md.Max
		if maxNumber <= 0 {
			maxNumber = 1
		}
		rules = append(rules, MaintenancePartRule{
			Part:        md.Name,
			Scopes:      md.Scopes,
			Probability: md.Probability,
			MaxNumber:   maxNumber,
		})
	}

	return NewCatalog(templates, rules, rnd), nil
}

// DefaultCatalog returns the built-in catalog used when no catalog file is
// configured.
func DefaultCatalog(rnd Rand) *StaticCatalog {
	cat, err := ParseCatalog([]byte(defaultCatalogYAML), rnd)
	if err != nil {
		// The embedded document is fixed at compile time; failing to parse
		// it is a programming error.
		panic(fmt.Sprintf("malfunction: built-in catalog invalid: %v", err))
	}
	return cat
}

func (td templateDoc) toTemplate() (*Template, error) {
	if td.Name == "" {
		return nil, fmt.Errorf("template has no name")
	}
	if len(td.Scopes) == 0 {
		return nil, fmt.Errorf("template has no scopes")
	}
	if len(td.Repair) == 0 {
		return nil, fmt.Errorf("template has no repair work")
	}

	sevMin, sevMax := td.Severity.Min, td.Severity.Max
	if sevMin <= 0 {
		sevMin = 1
	}
	if sevMax < sevMin {
		sevMax = sevMin
	}

	repairWork := make(map[WorkType]float64, len(td.Repair))
	capacity := make(map[WorkType]int, len(td.Repair))
	for key, rd := range td.Repair {
		var wt WorkType
		switch key {
		case "inside":
			wt = WorkInside
		case "eva":
			wt = WorkEVA
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownWorkType, key)
		}
		if rd.Work <= 0 {
			return nil, fmt.Errorf("%s repair work must be positive", key)
		}
		repairWork[wt] = rd.Work
		if rd.Slots > 0 {
			capacity[wt] = rd.Slots
		}
	}

	parts := make([]PartSpec, 0, len(td.Parts))
	for _, pd := range td.Parts {
		if pd.Name == "" {
			return nil, fmt.Errorf("part has no name")
		}
		maxNumber := pd.Max
		if maxNumber <= 0 {
			maxNumber = 1
		}
		parts = append(parts, PartSpec{
			Name:        pd.Name,
			MaxNumber:   maxNumber,
			Probability: pd.Probability,
		})
	}

	return &Template{
		Name:               td.Name,
		Scopes:             td.Scopes,
		Probability:        td.Probability,
		SeverityMin:        sevMin,
		SeverityMax:        sevMax,
		RepairWork:         repairWork,
		RepairerCapacity:   capacity,
		ResourceEffects:    td.ResourceEffects,
		LifeSupportEffects: td.LifeSupportEffects,
		MedicalComplaints:  td.MedicalComplaints,
		Parts:              parts,
		Impact:             td.Impact,
	}, nil
}

// defaultCatalogYAML is the built-in malfunction catalog. Probabilities are
// relative pick weights; effect rates are per millisol at 0% repaired.
const defaultCatalogYAML = `
malfunctions:
  - name: electrical short
    scopes: [building, vehicle, robot]
    probability: 20
    severity: {min: 10, max: 60}
    repair:
      inside: {work: 30, slots: 2}
    medical_complaints:
      minor burns: 5
    parts:
      - {name: wire connector, max: 4, probability: 60}
      - {name: electrical relay, max: 2, probability: 30}

  - name: air leak
    scopes: [building, life support, eva suit]
    probability: 10
    severity: {min: 40, max: 90}
    repair:
      inside: {work: 40, slots: 3}
      eva: {work: 20, slots: 2}
    resource_effects:
      oxygen: 0.4
    life_support_effects:
      oxygen: 30
      air pressure: 40
    medical_complaints:
      suffocation: 5
    parts:
      - {name: sealant patch, max: 3, probability: 80}
      - {name: pressure valve, max: 1, probability: 25}

  - name: water recycler failure
    scopes: [building, life support]
    probability: 12
    severity: {min: 20, max: 70}
    repair:
      inside: {work: 50, slots: 2}
    resource_effects:
      water: 0.6
    life_support_effects:
      water: 50
    parts:
      - {name: water filter, max: 2, probability: 70}
      - {name: small pump, max: 1, probability: 40}

  - name: heating unit failure
    scopes: [building, vehicle, life support]
    probability: 10
    severity: {min: 20, max: 80}
    repair:
      inside: {work: 35, slots: 2}
    life_support_effects:
      temperature: 60
    medical_complaints:
      frostbite: 10
    parts:
      - {name: heating element, max: 2, probability: 65}

  - name: fuel tank leak
    scopes: [vehicle]
    probability: 6
    severity: {min: 50, max: 95}
    repair:
      eva: {work: 60, slots: 2}
    resource_effects:
      methane: 1.2
    parts:
      - {name: sealant patch, max: 4, probability: 75}
      - {name: fuel line, max: 1, probability: 35}

  - name: navigation system fault
    scopes: [vehicle, robot]
    probability: 8
    severity: {min: 10, max: 50}
    repair:
      inside: {work: 25, slots: 1}
    parts:
      - {name: circuit board, max: 2, probability: 55}

  - name: suit pressure regulator fault
    scopes: [eva suit]
    probability: 8
    severity: {min: 40, max: 90}
    repair:
      inside: {work: 20, slots: 1}
    resource_effects:
      oxygen: 0.2
    life_support_effects:
      oxygen: 25
      air pressure: 35
    parts:
      - {name: pressure valve, max: 1, probability: 70}

  - name: dust storm damage
    scopes: [building, vehicle]
    probability: 5
    severity: {min: 30, max: 80}
    repair:
      eva: {work: 45, slots: 3}
    parts:
      - {name: solar panel, max: 3, probability: 50}
      - {name: antenna, max: 1, probability: 20}

  - name: meteorite impact
    scopes: [building, vehicle, eva suit]
    probability: 1
    severity: {min: 70, max: 100}
    impact: true
    repair:
      inside: {work: 60, slots: 3}
      eva: {work: 80, slots: 3}
    resource_effects:
      oxygen: 1.5
    life_support_effects:
      oxygen: 50
      air pressure: 60
    medical_complaints:
      lacerations: 20
      broken bone: 10
    parts:
      - {name: hull plate, max: 4, probability: 90}
      - {name: sealant patch, max: 6, probability: 80}

maintenance_parts:
  - {name: air filter, scopes: [building, life support], probability: 35, max: 2}
  - {name: lubricant cartridge, scopes: [vehicle, robot], probability: 40, max: 3}
  - {name: gasket set, scopes: [building, vehicle, life support], probability: 25, max: 2}
  - {name: wheel bearing, scopes: [vehicle], probability: 15, max: 2}
  - {name: suit liner, scopes: [eva suit], probability: 30, max: 1}
  - {name: battery cell, scopes: [vehicle, robot, eva suit], probability: 20, max: 2}
`
