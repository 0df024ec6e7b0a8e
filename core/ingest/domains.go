package ingest

import "sort"

// DefaultDomains are the upload domains of the portal.
// Classrooms and staff uploads are full replacements, the others append.
func DefaultDomains() []Domain {
	return []Domain{
		{Name: "classrooms", Table: "classrooms", Mode: ModeReplace, Kind: KindTabular},
		{Name: "instructors", Table: "instructors", Mode: ModeEnsure, Kind: KindTabular},
		{Name: "staff", Table: "staff_schedule", Mode: ModeReplace, Kind: KindRoster},
		{Name: "academic_files", Table: "academic_files", Mode: ModeEnsure, Partitioned: true, Kind: KindTabular},
		{Name: "schedule", Table: "master_schedule", Mode: ModeEnsure, Partitioned: true, Kind: KindTabular},
	}
}

// Registry holds the known upload domains.
type Registry struct {
	domains map[string]Domain
}

func NewRegistry(domains ...Domain) *Registry {
	reg := &Registry{domains: make(map[string]Domain, len(domains))}
	for _, d := range domains {
		if d.Kind == "" {
			d.Kind = KindTabular
		}
		reg.domains[d.Name] = d
	}
	return reg
}

func (reg *Registry) Lookup(name string) (Domain, error) {
	d, ok := reg.domains[name]
	if !ok {
		return Domain{}, UnknownDomainError(name)
	}
	return d, nil
}

// All returns the domains sorted by name.
func (reg *Registry) All() []Domain {
	all := make([]Domain, 0, len(reg.domains))
	for _, d := range reg.domains {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}
