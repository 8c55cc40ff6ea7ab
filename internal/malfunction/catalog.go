package malfunction

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// Catalog supplies malfunction templates and maintenance part rules scoped
// by subsystem tags, hands out globally unique incident numbers, and
// aggregates part failure statistics fed back by managers.
type Catalog interface {
	// PickMalfunction selects an eligible template at random, weighted by
	// probability. Returns nil when no template matches the scopes.
	PickMalfunction(scopes []string) *Template

	// NextIncidentID returns a monotonically increasing incident number.
	NextIncidentID() int64

	// RepairPartProbabilities returns, per part, the percent chance a
	// malfunction eligible under the scopes requires it.
	RepairPartProbabilities(scopes []string) map[string]float64

	// MaintenancePartRules returns the rules matching the scopes.
	MaintenancePartRules(scopes []string) []MaintenancePartRule

	// MaintenancePartProbabilities returns, per part, the percent chance a
	// maintenance cycle under the scopes requires it.
	MaintenancePartProbabilities(scopes []string) map[string]float64

	// RecordPartFailure adds to a part's global failure/demand counter.
	RecordPartFailure(part string, number int)
}

// StaticCatalog is an in-memory Catalog loaded from YAML or built in code.
type StaticCatalog struct {
	templates  []*Template
	maintRules []MaintenancePartRule

	mu         sync.Mutex
	incident   int64
	partDemand map[string]int
	rnd        Rand
}

// NewCatalog builds a catalog from templates and maintenance rules.
// Template and rule scopes are normalized to lower case. A nil rnd uses
// the global math/rand source.
func NewCatalog(templates []*Template, rules []MaintenancePartRule, rnd Rand) *StaticCatalog {
	if rnd == nil {
		rnd = globalRand{}
	}
	for _, t := range templates {
		t.Scopes = normalizeScopes(t.Scopes)
	}
	for i := range rules {
		rules[i].Scopes = normalizeScopes(rules[i].Scopes)
	}
	return &StaticCatalog{
		templates:  templates,
		maintRules: rules,
		partDemand: make(map[string]int),
		rnd:        rnd,
	}
}

// PickMalfunction implements Catalog.
func (c *StaticCatalog) PickMalfunction(scopes []string) *Template {
	var eligible []*Template
	total := 0.0
	for _, t := range c.templates {
		if t.Probability > 0 && t.appliesTo(scopes) {
			eligible = append(eligible, t)
			total += t.Probability
		}
	}
	if len(eligible) == 0 || total <= 0 {
		return nil
	}

	c.mu.Lock()
	roll := c.rnd.Float64() * total
	c.mu.Unlock()

	for _, t := range eligible {
		roll -= t.Probability
		if roll < 0 {
			return t
		}
	}
	return eligible[len(eligible)-1]
}

// TemplateByName finds a template for scripted triggering.
func (c *StaticCatalog) TemplateByName(name string) (*Template, error) {
	for _, t := range c.templates {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
}

// Templates returns all templates, for reporting.
func (c *StaticCatalog) Templates() []*Template {
	out := make([]*Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// NextIncidentID implements Catalog.
func (c *StaticCatalog) NextIncidentID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incident++
	return c.incident
}

// RepairPartProbabilities implements Catalog. When several templates can
// require the same part the chances are combined as independent events.
func (c *StaticCatalog) RepairPartProbabilities(scopes []string) map[string]float64 {
	missChance := make(map[string]float64)
	for _, t := range c.templates {
		if !t.appliesTo(scopes) {
			continue
		}
		for _, p := range t.Parts {
			miss, ok := missChance[p.Name]
			if !ok {
				miss = 1.0
			}
			missChance[p.Name] = miss * (1 - p.Probability/100)
		}
	}

	out := make(map[string]float64, len(missChance))
	for part, miss := range missChance {
		out[part] = (1 - miss) * 100
	}
	return out
}

// MaintenancePartRules implements Catalog.
func (c *StaticCatalog) MaintenancePartRules(scopes []string) []MaintenancePartRule {
	var out []MaintenancePartRule
	for _, r := range c.maintRules {
		if ruleApplies(r, scopes) {
			out = append(out, r)
		}
	}
	return out
}

// MaintenancePartProbabilities implements Catalog.
func (c *StaticCatalog) MaintenancePartProbabilities(scopes []string) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range c.MaintenancePartRules(scopes) {
		out[r.Part] = r.Probability
	}
	return out
}

// RecordPartFailure implements Catalog.
func (c *StaticCatalog) RecordPartFailure(part string, number int) {
	if number <= 0 {
		return
	}
	c.mu.Lock()
	c.partDemand[part] += number
	c.mu.Unlock()
}

// PartDemand returns a copy of the accumulated part failure counters.
func (c *StaticCatalog) PartDemand() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.partDemand))
	for part, n := range c.partDemand {
		out[part] = n
	}
	return out
}

func ruleApplies(r MaintenancePartRule, scopes []string) bool {
	for _, have := range scopes {
		for _, want := range r.Scopes {
			if have == want {
				return true
			}
		}
	}
	return false
}

func normalizeScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// globalRand adapts the package-level math/rand source to the Rand seam.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) Intn(n int) int   { return rand.Intn(n) }
