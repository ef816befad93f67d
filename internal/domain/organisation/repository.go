package organisation

import "context"

// Repository defines persistence behaviours for organisations and their members.
type Repository interface {
	// Create stores the organisation and registers ownerID as its first member.
	Create(ctx context.Context, org *Organisation, ownerID string) error
	GetByID(ctx context.Context, id string) (*Organisation, error)
	GetByName(ctx context.Context, name string) (*Organisation, error)
	ListByUser(ctx context.Context, userID string) ([]*Organisation, error)
	AddMember(ctx context.Context, orgID, userID string) error
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
}
