package api

import (
	"context"

	"github.com/matheus3301/smsync/internal/contacts"
)

// ContactService edits the contacts directory used for display names.
type ContactService struct {
	directory *contacts.Directory
	trigger   Trigger
}

// Trigger schedules a conversation rebuild.
type Trigger interface {
	Trigger()
}

// NewContactService creates a contact service. Edits trigger a rebuild so
// display names refresh.
func NewContactService(d *contacts.Directory, trigger Trigger) *ContactService {
	return &ContactService{directory: d, trigger: trigger}
}

func (s *ContactService) Desc() Desc {
	return Desc{
		Name: "ContactService",
		Unary: map[string]UnaryFunc{
			"SetContact":   unary(s.SetContact),
			"ListContacts": unary(s.ListContacts),
		},
	}
}

func (s *ContactService) SetContact(ctx context.Context, req SetContactRequest) (Empty, error) {
	if err := s.directory.Set(ctx, req.Address, req.Name, req.PhotoRef); err != nil {
		return Empty{}, err
	}
	if s.trigger != nil {
		s.trigger.Trigger()
	}
	return Empty{}, nil
}

func (s *ContactService) ListContacts(ctx context.Context, _ Empty) (ListContactsResponse, error) {
	list, err := s.directory.List(ctx)
	return ListContactsResponse{Contacts: list}, err
}
