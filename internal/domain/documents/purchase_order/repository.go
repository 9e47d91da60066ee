package purchase_order

import (
	"context"

	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain"
)

// Repository defines data access for purchase orders and their items.
// Every method is a single-statement write or read.
type Repository interface {
	Create(ctx context.Context, order *PurchaseOrder) error
	GetByID(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseOrder], error)

	// Delete removes an order header. Used only to compensate a failed create.
	Delete(ctx context.Context, orderID id.ID) error

	// Update writes the header where the stored version still equals order.Version,
	// then bumps it. Returns CONCURRENT_MODIFICATION otherwise.
	Update(ctx context.Context, order *PurchaseOrder) error

	// TransitionStatus moves the order from one status to another only while the
	// stored status is still from. Reports false when no row matched.
	TransitionStatus(ctx context.Context, orderID id.ID, from, to Status, userID string) (bool, error)

	// Touch bumps the version and update stamp without changing any field.
	Touch(ctx context.Context, orderID id.ID, userID string) error

	// AppendNote adds a line to the notes field regardless of status.
	AppendNote(ctx context.Context, orderID id.ID, line string) error

	UpdatePaymentStatus(ctx context.Context, orderID id.ID, status PaymentStatus, userID string) error

	GetItems(ctx context.Context, orderID id.ID) ([]PurchaseItem, error)
	InsertItems(ctx context.Context, items []PurchaseItem) error
	DeleteItems(ctx context.Context, orderID id.ID) error
}

// ReturnTotalAccumulator is implemented by stores whose schema carries the
// return_total aggregate. The return engine feature-detects it.
type ReturnTotalAccumulator interface {
	AddReturnTotal(ctx context.Context, orderID id.ID, amount types.Money) error
}

// ListFilter narrows order lists.
type ListFilter struct {
	domain.ListFilter

	Status     *Status
	SupplierID *id.ID
}
