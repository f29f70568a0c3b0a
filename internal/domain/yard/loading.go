package yard

import (
	"time"

	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
)

// LoadingStatus represents the current state of an outbound loading.
type LoadingStatus string

const (
	LoadingPending  LoadingStatus = "pending"   // Ordered, truck not yet on the scale
	LoadingScaledIn LoadingStatus = "scaled_in" // Truck weighed in for loading
	LoadingLoaded   LoadingStatus = "loaded"    // Cargo dispatched, terminal
)

// loadingTransitions is the allowed status graph for loadings.
var loadingTransitions = map[LoadingStatus][]LoadingStatus{
	LoadingPending:  {LoadingScaledIn},
	LoadingScaledIn: {LoadingLoaded},
	LoadingLoaded:   {},
}

// Loading represents an outbound customer loading moving through the
// dispatch workflow.
type Loading struct {
	ID            string        `json:"id"`                // Client-generated unique identifier
	CustomerName  string        `json:"customerName"`      // Customer receiving the goods
	Product       string        `json:"product"`           // Product being dispatched
	Quantity      float64       `json:"quantity"`          // Ordered quantity
	Unit          string        `json:"unit,omitempty"`    // Quantity unit (tons, bags)
	TruckPlate    string        `json:"truckPlate"`        // Vehicle registration plate
	Waybill       string        `json:"waybill,omitempty"` // Waybill number, set at scale-in
	Status        LoadingStatus `json:"status"`            // Current workflow status
	StatusHistory []StatusEntry `json:"statusHistory"`     // Append-only status trail
	CreatedAt     time.Time     `json:"createdAt"`         // Immutable creation timestamp
	UpdatedAt     time.Time     `json:"updatedAt"`         // Bumped on every mutation
}

// NewLoading creates a pending loading stamped with the given ID and time.
func NewLoading(id, customer, product string, quantity float64, plate string, now time.Time) *Loading {
	return &Loading{
		ID:            id,
		CustomerName:  customer,
		Product:       product,
		Quantity:      quantity,
		TruckPlate:    plate,
		Status:        LoadingPending,
		StatusHistory: appendEntry(nil, string(LoadingPending), now, nil),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate checks that the loading has the required fields.
func (l *Loading) Validate() error {
	if l.ID == "" {
		return errors.NewError(errors.CodeValidation, "loading is missing an ID", errors.ErrRecordIDRequired)
	}
	if l.CustomerName == "" {
		return errors.NewError(errors.CodeValidation, "loading is missing a customer", errors.ErrCustomerRequired)
	}
	if l.Product == "" {
		return errors.NewError(errors.CodeValidation, "loading is missing a product", errors.ErrProductRequired)
	}
	return nil
}

// CanTransition reports whether a loading may move from one status to another.
func (l *Loading) CanTransition(to LoadingStatus) bool {
	for _, next := range loadingTransitions[l.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the loading to a new status, appending to its history
// and bumping UpdatedAt. Transitions outside the status graph return a
// VALIDATION error.
func (l *Loading) Transition(to LoadingStatus, now time.Time, detail map[string]string) error {
	if !l.CanTransition(to) {
		err := errors.NewError(errors.CodeValidation, "loading cannot move to "+string(to), errors.ErrInvalidTransition)
		errors.WithContext(err, "from", string(l.Status))
		errors.WithContext(err, "to", string(to))
		return err
	}
	l.Status = to
	l.StatusHistory = appendEntry(l.StatusHistory, string(to), now, detail)
	l.UpdatedAt = now
	return nil
}

// EffectiveTime returns the timestamp used for merge comparisons:
// UpdatedAt, falling back to CreatedAt for legacy records.
func (l *Loading) EffectiveTime() time.Time {
	if !l.UpdatedAt.IsZero() {
		return l.UpdatedAt
	}
	return l.CreatedAt
}

// Clone returns a deep copy of the loading.
func (l *Loading) Clone() *Loading {
	cp := *l
	cp.StatusHistory = make([]StatusEntry, len(l.StatusHistory))
	copy(cp.StatusHistory, l.StatusHistory)
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
