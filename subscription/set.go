package subscription

import (
	"sort"

	"github.com/xraph/bits/store"
)

// Set holds every subscription keyed by payer, then payee.
type Set map[string]map[string]Subscription

// Resource is the persisted subscription set.
var Resource = store.Define[Set](store.Subscriptions, "subscriptions", 1)

// Get returns the subscription from payer to payee.
func (s Set) Get(payer, payee string) (Subscription, bool) {
	sub, ok := s[payer][payee]
	return sub, ok
}

// Put inserts or replaces the subscription for its (payer, payee) pair.
func (s *Set) Put(sub Subscription) {
	if *s == nil {
		*s = make(Set)
	}
	if (*s)[sub.Payer] == nil {
		(*s)[sub.Payer] = make(map[string]Subscription)
	}
	(*s)[sub.Payer][sub.Payee] = sub
}

// Remove deletes the subscription from payer to payee and reports whether
// one existed.
func (s Set) Remove(payer, payee string) (Subscription, bool) {
	sub, ok := s[payer][payee]
	if !ok {
		return Subscription{}, false
	}
	delete(s[payer], payee)
	if len(s[payer]) == 0 {
		delete(s, payer)
	}
	return sub, true
}

// RemoveAll deletes every subscription paid by payer.
func (s Set) RemoveAll(payer string) []Subscription {
	subs := s.From(payer)
	delete(s, payer)
	return subs
}

// From lists the subscriptions paid by payer, ordered by payee.
func (s Set) From(payer string) []Subscription {
	out := make([]Subscription, 0, len(s[payer]))
	for _, sub := range s[payer] {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Payee < out[j].Payee })
	return out
}

// To lists the subscriptions paying payee, ordered by payer.
func (s Set) To(payee string) []Subscription {
	var out []Subscription
	for _, byPayee := range s {
		if sub, ok := byPayee[payee]; ok {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Payer < out[j].Payer })
	return out
}

// All lists every subscription ordered by payer then payee, which is the
// order billing sweeps charge them in.
func (s Set) All() []Subscription {
	var out []Subscription
	for _, byPayee := range s {
		for _, sub := range byPayee {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Payer != out[j].Payer {
			return out[i].Payer < out[j].Payer
		}
		return out[i].Payee < out[j].Payee
	})
	return out
}

// Len returns the number of subscriptions.
func (s Set) Len() int {
	n := 0
	for _, byPayee := range s {
		n += len(byPayee)
	}
	return n
}
