package company

import (
	"testing"
	"time"
)

func TestNewCompany(t *testing.T) {
	c := New("alice", time.Now())
	if c.Name != "alicecompany" {
		t.Errorf("Name = %q", c.Name)
	}
	if !c.IsMember("alice") || len(c.Members) != 1 {
		t.Errorf("founder must be the only member: %v", c.Members)
	}
	if c.ID.IsNil() {
		t.Error("expected a company id")
	}
}

func TestAddMember(t *testing.T) {
	c := New("alice", time.Now())

	if !c.AddMember("bob", time.Now()) {
		t.Error("expected bob to be added")
	}
	if c.AddMember("bob", time.Now()) {
		t.Error("adding an existing member must be a no-op")
	}
	if c.AddMember("alice", time.Now()) {
		t.Error("founder is always a member")
	}
	if len(c.Members) != 2 {
		t.Errorf("Members = %v", c.Members)
	}
}

func TestRegistry(t *testing.T) {
	var r Registry
	r.Put(New("alice", time.Now()))
	b := New("bob", time.Now())
	b.AddMember("alice", time.Now())
	r.Put(b)

	if !r.Has("alicecompany") || r.Has("carolcompany") {
		t.Error("unexpected Has results")
	}

	got := r.ForMember("alice")
	if len(got) != 2 || got[0].Name != "alicecompany" || got[1].Name != "bobcompany" {
		t.Errorf("ForMember(alice) = %+v", got)
	}
	if names := r.Names(); len(names) != 2 || names[1] != "bobcompany" {
		t.Errorf("Names = %v", names)
	}
}
