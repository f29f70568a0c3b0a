// Package yard defines the domain model for truck pickup and delivery
// tracking: trucks, loadings, their status machines, and the shared
// document that is synchronized between clients.
package yard

import (
	"time"

	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
)

// TruckStatus represents the current state of a pickup truck.
type TruckStatus string

const (
	TruckPending   TruckStatus = "pending"   // Announced, not yet on the scale
	TruckScaledIn  TruckStatus = "scaled_in" // Weighed in, waybill recorded
	TruckOffloaded TruckStatus = "offloaded" // Cargo received, terminal
	TruckRejected  TruckStatus = "rejected"  // Turned away, may re-enter
)

// truckTransitions is the allowed status graph for trucks.
var truckTransitions = map[TruckStatus][]TruckStatus{
	TruckPending:   {TruckScaledIn, TruckRejected},
	TruckScaledIn:  {TruckOffloaded, TruckRejected},
	TruckRejected:  {TruckScaledIn},
	TruckOffloaded: {},
}

// Truck represents a supplier truck moving through the pickup workflow.
type Truck struct {
	ID            string        `json:"id"`                // Client-generated unique identifier
	SupplierName  string        `json:"supplierName"`      // Supplier the truck arrives from
	Product       string        `json:"product"`           // Product being delivered
	Quantity      float64       `json:"quantity"`          // Declared quantity
	Unit          string        `json:"unit,omitempty"`    // Quantity unit (tons, bags)
	TruckPlate    string        `json:"truckPlate"`        // Vehicle registration plate
	Waybill       string        `json:"waybill,omitempty"` // Waybill number, set at scale-in
	Status        TruckStatus   `json:"status"`            // Current workflow status
	StatusHistory []StatusEntry `json:"statusHistory"`     // Append-only status trail
	CreatedAt     time.Time     `json:"createdAt"`         // Immutable creation timestamp
	UpdatedAt     time.Time     `json:"updatedAt"`         // Bumped on every mutation
}

// NewTruck creates a pending truck stamped with the given ID and time.
func NewTruck(id, supplier, product string, quantity float64, plate string, now time.Time) *Truck {
	return &Truck{
		ID:            id,
		SupplierName:  supplier,
		Product:       product,
		Quantity:      quantity,
		TruckPlate:    plate,
		Status:        TruckPending,
		StatusHistory: appendEntry(nil, string(TruckPending), now, nil),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate checks that the truck has the required fields.
func (t *Truck) Validate() error {
	if t.ID == "" {
		return errors.NewError(errors.CodeValidation, "truck is missing an ID", errors.ErrRecordIDRequired)
	}
	if t.SupplierName == "" {
		return errors.NewError(errors.CodeValidation, "truck is missing a supplier", errors.ErrSupplierRequired)
	}
	if t.Product == "" {
		return errors.NewError(errors.CodeValidation, "truck is missing a product", errors.ErrProductRequired)
	}
	return nil
}

// CanTransition reports whether a truck may move from one status to another.
func (t *Truck) CanTransition(to TruckStatus) bool {
	for _, next := range truckTransitions[t.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the truck to a new status, appending to its history
// and bumping UpdatedAt. Transitions outside the status graph return a
// VALIDATION error.
func (t *Truck) Transition(to TruckStatus, now time.Time, detail map[string]string) error {
	if !t.CanTransition(to) {
		err := errors.NewError(errors.CodeValidation, "truck cannot move to "+string(to), errors.ErrInvalidTransition)
		errors.WithContext(err, "from", string(t.Status))
		errors.WithContext(err, "to", string(to))
		return err
	}
	t.Status = to
	t.StatusHistory = appendEntry(t.StatusHistory, string(to), now, detail)
	t.UpdatedAt = now
	return nil
}

// EffectiveTime returns the timestamp used for merge comparisons:
// UpdatedAt, falling back to CreatedAt for legacy records.
func (t *Truck) EffectiveTime() time.Time {
	if !t.UpdatedAt.IsZero() {
		return t.UpdatedAt
	}
	return t.CreatedAt
}

// Clone returns a deep copy of the truck.
func (t *Truck) Clone() *Truck {
	cp := *t
	cp.StatusHistory = make([]StatusEntry, len(t.StatusHistory))
	copy(cp.StatusHistory, t.StatusHistory)
	for i, e := range cp.StatusHistory {
		if e.Detail != nil {
			d := make(map[string]string, len(e.Detail))
			for k, v := range e.Detail {
				d[k] = v
			}
			cp.StatusHistory[i].Detail = d
		}
	}
	return &cp
}
