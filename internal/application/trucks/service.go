// Package trucks provides the application service for supplier trucks.
// It stamps identities and timestamps, enforces the status machine, and
// funnels every mutation through the sync layer.
package trucks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/yardsync/internal/application/ports"
	appsync "github.com/jbctechsolutions/yardsync/internal/application/sync"
	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
	"github.com/jbctechsolutions/yardsync/internal/domain/operation"
	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
)

// AddInput holds the fields for announcing a new truck.
type AddInput struct {
	SupplierName string
	Product      string
	Quantity     float64
	Unit         string
	TruckPlate   string
}

// UpdateInput holds optional field changes. Nil pointers leave the
// field untouched.
type UpdateInput struct {
	SupplierName *string
	Product      *string
	Quantity     *float64
	Unit         *string
	TruckPlate   *string
	Waybill      *string
}

// Service manages the truck collection.
type Service struct {
	orch *appsync.Orchestrator
}

// NewService creates a truck service.
func NewService(orch *appsync.Orchestrator) *Service {
	return &Service{orch: orch}
}

// Add announces a new pending truck.
func (s *Service) Add(ctx context.Context, input AddInput) (*yard.Truck, error) {
	truck := yard.NewTruck(uuid.New().String(), input.SupplierName, input.Product, input.Quantity, input.TruckPlate, time.Now().UTC())
	truck.Unit = input.Unit
	if err := truck.Validate(); err != nil {
		return nil, err
	}

	err := s.orch.Mutate(ctx, operation.KindCreate, operation.RecordTruck, truck.ID, func(doc *yard.Document) error {
		doc.UpsertTruck(*truck)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return truck, nil
}

// BulkAdd announces one truck per validated entry. Entries must have
// passed the parser's validation; invalid ones are rejected here too.
func (s *Service) BulkAdd(ctx context.Context, entries []ports.ParsedEntry) ([]yard.Truck, error) {
	added := make([]yard.Truck, 0, len(entries))
	for _, e := range entries {
		truck, err := s.Add(ctx, AddInput{
			SupplierName: e.Name,
			Product:      e.Product,
			Quantity:     e.Quantity,
			Unit:         e.Unit,
			TruckPlate:   e.TruckPlate,
		})
		if err != nil {
			return added, err
		}
		added = append(added, *truck)
	}
	return added, nil
}

// ScaleIn records the truck on the scale with its waybill.
func (s *Service) ScaleIn(ctx context.Context, id, waybill string) (*yard.Truck, error) {
	return s.transition(ctx, id, yard.TruckScaledIn, map[string]string{"waybill": waybill}, func(t *yard.Truck) {
		t.Waybill = waybill
	})
}

// Offload marks the cargo as received. Terminal.
func (s *Service) Offload(ctx context.Context, id string) (*yard.Truck, error) {
	return s.transition(ctx, id, yard.TruckOffloaded, nil, nil)
}

// Reject turns the truck away. A rejected truck may scale in again.
func (s *Service) Reject(ctx context.Context, id, reason string) (*yard.Truck, error) {
	var detail map[string]string
	if reason != "" {
		detail = map[string]string{"reason": reason}
	}
	return s.transition(ctx, id, yard.TruckRejected, detail, nil)
}

// transition applies a status change through the sync layer. The status
// machine is enforced here no matter what the caller offers.
func (s *Service) transition(ctx context.Context, id string, to yard.TruckStatus, detail map[string]string, extra func(*yard.Truck)) (*yard.Truck, error) {
	var result *yard.Truck
	err := s.orch.Mutate(ctx, operation.KindUpdate, operation.RecordTruck, id, func(doc *yard.Document) error {
		truck := doc.FindTruck(id)
		if truck == nil {
			return errors.NewError(errors.CodeNotFound, "truck "+id+" not found", errors.ErrTruckNotFound)
		}
		if err := truck.Transition(to, time.Now().UTC(), detail); err != nil {
			return err
		}
		if extra != nil {
			extra(truck)
		}
		result = truck.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update changes record fields without touching the status machine.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*yard.Truck, error) {
	var result *yard.Truck
	err := s.orch.Mutate(ctx, operation.KindUpdate, operation.RecordTruck, id, func(doc *yard.Document) error {
		truck := doc.FindTruck(id)
		if truck == nil {
			return errors.NewError(errors.CodeNotFound, "truck "+id+" not found", errors.ErrTruckNotFound)
		}
		if input.SupplierName != nil {
			truck.SupplierName = *input.SupplierName
		}
		if input.Product != nil {
			truck.Product = *input.Product
		}
		if input.Quantity != nil {
			truck.Quantity = *input.Quantity
		}
		if input.Unit != nil {
			truck.Unit = *input.Unit
		}
		if input.TruckPlate != nil {
			truck.TruckPlate = *input.TruckPlate
		}
		if input.Waybill != nil {
			truck.Waybill = *input.Waybill
		}
		if err := truck.Validate(); err != nil {
			return err
		}
		truck.UpdatedAt = time.Now().UTC()
		result = truck.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a truck. The deletion is shielded until the remote
// confirms it.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.orch.Mutate(ctx, operation.KindDelete, operation.RecordTruck, id, func(doc *yard.Document) error {
		if !doc.RemoveTruck(id) {
			return errors.NewError(errors.CodeNotFound, "truck "+id+" not found", errors.ErrTruckNotFound)
		}
		return nil
	})
}

// Reset clears the truck collection and supersedes everything pending.
func (s *Service) Reset(ctx context.Context) error {
	return s.orch.Mutate(ctx, operation.KindReset, operation.RecordDocument, "", func(doc *yard.Document) error {
		doc.Trucks = []yard.Truck{}
		return nil
	})
}

// List returns all trucks from the local view.
func (s *Service) List(ctx context.Context) ([]yard.Truck, error) {
	doc, err := s.orch.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Trucks, nil
}

// Get returns one truck by ID.
func (s *Service) Get(ctx context.Context, id string) (*yard.Truck, error) {
	doc, err := s.orch.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	truck := doc.FindTruck(id)
	if truck == nil {
		return nil, errors.NewError(errors.CodeNotFound, "truck "+id+" not found", errors.ErrTruckNotFound)
	}
	return truck, nil
}
