// Package contacts resolves participant addresses to display identities.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/smsync/internal/address"
	"github.com/matheus3301/smsync/internal/store"
)

// Info is the display identity of one address.
type Info struct {
	DisplayName string
	PhotoRef    string
}

// Resolver looks up the identity of one address. Unknown addresses resolve
// to an Info whose DisplayName is the address itself.
type Resolver interface {
	Resolve(ctx context.Context, addr string) (Info, error)
}

// Recipient is the resolved identity of a raw participant list.
type Recipient struct {
	RawAddress  string
	DisplayName string
	PhotoRef    string
}

// ResolveParticipants resolves every member of raw. Names are joined with
// ", " and a photo is kept only for single-participant threads. Lookup
// failures fall back to the bare address and are returned joined.
func ResolveParticipants(ctx context.Context, r Resolver, raw string) (Recipient, error) {
	members := address.Split(raw)
	if len(members) == 0 {
		return Recipient{DisplayName: address.UnknownName}, nil
	}

	var errs []error
	names := make([]string, 0, len(members))
	var photo string
	for _, m := range members {
		info := Info{DisplayName: m}
		if r != nil {
			resolved, err := r.Resolve(ctx, m)
			if err != nil {
				errs = append(errs, fmt.Errorf("resolve %q: %w", m, err))
			} else {
				info = resolved
			}
		}
		if info.DisplayName == "" {
			info.DisplayName = m
		}
		names = append(names, info.DisplayName)
		photo = info.PhotoRef
	}
	if len(members) > 1 {
		photo = ""
	}
	return Recipient{
		RawAddress:  address.Join(members),
		DisplayName: strings.Join(names, ", "),
		PhotoRef:    photo,
	}, errors.Join(errs...)
}

// ErrInvalidAddress is returned when a contact address has no digits.
var ErrInvalidAddress = errors.New("contact address has no digits")

// Directory is a Resolver backed by the app database.
type Directory struct {
	db *store.DB
}

// NewDirectory creates a directory over db.
func NewDirectory(db *store.DB) *Directory {
	return &Directory{db: db}
}

// Resolve looks addr up by its destination form.
func (d *Directory) Resolve(ctx context.Context, addr string) (Info, error) {
	c, err := d.db.GetContact(ctx, address.Destination(addr))
	if err != nil {
		return Info{DisplayName: addr}, err
	}
	if c == nil || c.Name == "" {
		info := Info{DisplayName: addr}
		if c != nil {
			info.PhotoRef = c.PhotoRef
		}
		return info, nil
	}
	return Info{DisplayName: c.Name, PhotoRef: c.PhotoRef}, nil
}

// Set stores the identity of addr.
func (d *Directory) Set(ctx context.Context, addr, name, photoRef string) error {
	key := address.Destination(addr)
	if key == "" {
		return fmt.Errorf("set contact %q: %w", addr, ErrInvalidAddress)
	}
	return d.db.UpsertContact(ctx, &store.Contact{Address: key, Name: name, PhotoRef: photoRef})
}

// List returns every stored contact.
func (d *Directory) List(ctx context.Context) ([]store.Contact, error) {
	return d.db.ListContacts(ctx)
}
