// Package company models pooled accounts owned by a founder and operated
// by a member set. Company balances live in the ledger under the company name.
package company

import (
	"sort"
	"time"

	"github.com/xraph/bits/id"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/types"
)

// Suffix is appended to the founder's name to form the company name.
const Suffix = "company"

// NameFor returns the company name for founder.
func NameFor(founder string) string { return founder + Suffix }

// Company is a pooled account.
type Company struct {
	types.Entity
	ID      id.CompanyID `json:"id"`
	Name    string       `json:"name"`
	Founder string       `json:"founder"`
	Members []string     `json:"members"`
}

// New creates a company for founder with the founder as the only member.
func New(founder string, t time.Time) Company {
	return Company{
		Entity:  types.NewEntity(t),
		ID:      id.NewCompanyID(),
		Name:    NameFor(founder),
		Founder: founder,
		Members: []string{founder},
	}
}

// IsMember reports whether user may operate the company.
func (c Company) IsMember(user string) bool {
	if user == c.Founder {
		return true
	}
	for _, m := range c.Members {
		if m == user {
			return true
		}
	}
	return false
}

// AddMember adds user and reports whether the member set changed.
func (c *Company) AddMember(user string, t time.Time) bool {
	if c.IsMember(user) {
		return false
	}
	c.Members = append(c.Members, user)
	c.Touch(t)
	return true
}

// Registry holds every company keyed by name. Companies are never removed.
type Registry map[string]Company

// Resource is the persisted company registry.
var Resource = store.Define[Registry](store.Companies, "companies", 1)

// Get returns the named company.
func (r Registry) Get(name string) (Company, bool) {
	c, ok := r[name]
	return c, ok
}

// Has reports whether name is a registered company.
func (r Registry) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// Put inserts or replaces c.
func (r *Registry) Put(c Company) {
	if *r == nil {
		*r = make(Registry)
	}
	(*r)[c.Name] = c
}

// ForMember lists the companies user belongs to, ordered by name.
func (r Registry) ForMember(user string) []Company {
	var out []Company
	for _, c := range r {
		if c.IsMember(user) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names lists every company name, sorted.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
