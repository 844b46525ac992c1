package bits

import (
	"context"
	"fmt"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/company"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/types"
)

// Found creates founder's company funded with amount from the founder's
// balance. A founder may own one company. An unregistered account that
// already carries the company name is adopted with its balance.
func (e *Engine) Found(ctx context.Context, founder string, amount types.Bits) (*company.Company, *Receipt, error) {
	founder, err := accountName("founder", founder)
	if err != nil {
		return nil, nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, nil, err
	}

	var (
		co  company.Company
		rec *Receipt
	)
	err = store.Update(ctx, e.store, company.Resource, func(reg *company.Registry) error {
		name := company.NameFor(founder)
		if reg.Has(name) {
			return fmt.Errorf("%w: %s", ErrCompanyExists, name)
		}
		r, err := e.move(ctx, founder, name, amount, true)
		if err != nil {
			return err
		}
		co = company.New(founder, e.now())
		reg.Put(co)
		rec = r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	e.plugins.EmitCompanyFounded(ctx, &co)
	e.logger.Info("company founded",
		"company", co.Name,
		"founder", founder,
		"amount", amount.String(),
	)
	return &co, rec, nil
}

// AddMember lets a member of name authorize user on the company account.
// Adding an existing member returns ErrAlreadyMember and changes nothing.
func (e *Engine) AddMember(ctx context.Context, name, actor, user string) (*company.Company, error) {
	name = account.Normalize(name)
	actor, err := accountName("actor", actor)
	if err != nil {
		return nil, err
	}
	user, err = accountName("user", user)
	if err != nil {
		return nil, err
	}

	var co company.Company
	err = store.Update(ctx, e.store, company.Resource, func(reg *company.Registry) error {
		c, ok := reg.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrCompanyNotFound, name)
		}
		if !c.IsMember(actor) {
			return fmt.Errorf("%w: %s is not a member of %s", ErrNotMember, actor, name)
		}
		if !c.AddMember(user, e.now()) {
			return fmt.Errorf("%w: %s in %s", ErrAlreadyMember, user, name)
		}
		reg.Put(c)
		co = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitMemberAdded(ctx, &co, user)
	e.logger.Info("company member added", "company", name, "actor", actor, "member", user)
	return &co, nil
}

// SendFromCompany moves amount from the company account to to. The actor
// must be a member. Members are never removed, so membership is checked
// without holding the registry lock.
func (e *Engine) SendFromCompany(ctx context.Context, name, actor, to string, amount types.Bits) (*Receipt, error) {
	name = account.Normalize(name)
	actor, err := accountName("actor", actor)
	if err != nil {
		return nil, err
	}
	to, err = accountName("to", to)
	if err != nil {
		return nil, err
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if to == actor || to == name {
		return nil, fmt.Errorf("%w: %s", ErrSelfTransfer, to)
	}

	co, err := e.Company(ctx, name)
	if err != nil {
		return nil, err
	}
	if !co.IsMember(actor) {
		return nil, fmt.Errorf("%w: %s is not a member of %s", ErrNotMember, actor, name)
	}
	return e.move(ctx, co.Name, to, amount, false)
}

// Company returns the named company.
func (e *Engine) Company(ctx context.Context, name string) (*company.Company, error) {
	reg, err := store.Read(ctx, e.store, company.Resource)
	if err != nil {
		return nil, err
	}
	co, ok := reg.Get(account.Normalize(name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, name)
	}
	return &co, nil
}

// CompaniesFor lists the companies user may operate.
func (e *Engine) CompaniesFor(ctx context.Context, user string) ([]company.Company, error) {
	reg, err := store.Read(ctx, e.store, company.Resource)
	if err != nil {
		return nil, err
	}
	return reg.ForMember(account.Normalize(user)), nil
}

// Companies lists every registered company name.
func (e *Engine) Companies(ctx context.Context) ([]string, error) {
	reg, err := store.Read(ctx, e.store, company.Resource)
	if err != nil {
		return nil, err
	}
	return reg.Names(), nil
}
