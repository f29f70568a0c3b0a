// Package loadings provides the application service for outbound
// customer loadings. It mirrors the trucks service for the dispatch
// side of the yard.
package loadings

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

// AddInput holds the fields for ordering a new loading.
type AddInput struct {
	CustomerName string
	Product      string
	Quantity     float64
	Unit         string
	TruckPlate   string
}

// UpdateInput holds optional field changes. Nil pointers leave the
// field untouched.
type UpdateInput struct {
	CustomerName *string
	Product      *string
	Quantity     *float64
	Unit         *string
	TruckPlate   *string
	Waybill      *string
}

// Service manages the loading collection.
type Service struct {
	orch *appsync.Orchestrator
}

// NewService creates a loading service.
func NewService(orch *appsync.Orchestrator) *Service {
	return &Service{orch: orch}
}

// Add orders a new pending loading.
func (s *Service) Add(ctx context.Context, input AddInput) (*yard.Loading, error) {
	loading := yard.NewLoading(uuid.New().String(), input.CustomerName, input.Product, input.Quantity, input.TruckPlate, time.Now().UTC())
	loading.Unit = input.Unit
	if err := loading.Validate(); err != nil {
		return nil, err
	}

	err := s.orch.Mutate(ctx, operation.KindCreate, operation.RecordLoading, loading.ID, func(doc *yard.Document) error {
		doc.UpsertLoading(*loading)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loading, nil
}

// BulkAdd orders one loading per validated entry.
func (s *Service) BulkAdd(ctx context.Context, entries []ports.ParsedEntry) ([]yard.Loading, error) {
	added := make([]yard.Loading, 0, len(entries))
	for _, e := range entries {
		loading, err := s.Add(ctx, AddInput{
			CustomerName: e.Name,
			Product:      e.Product,
			Quantity:     e.Quantity,
			Unit:         e.Unit,
			TruckPlate:   e.TruckPlate,
		})
		if err != nil {
			return added, err
		}
		added = append(added, *loading)
	}
	return added, nil
}

// ScaleIn records the truck on the scale with its waybill.
func (s *Service) ScaleIn(ctx context.Context, id, waybill string) (*yard.Loading, error) {
	return s.transition(ctx, id, yard.LoadingScaledIn, map[string]string{"waybill": waybill}, func(l *yard.Loading) {
		l.Waybill = waybill
	})
}

// MarkLoaded marks the cargo as dispatched. Terminal.
func (s *Service) MarkLoaded(ctx context.Context, id string) (*yard.Loading, error) {
	return s.transition(ctx, id, yard.LoadingLoaded, nil, nil)
}

func (s *Service) transition(ctx context.Context, id string, to yard.LoadingStatus, detail map[string]string, extra func(*yard.Loading)) (*yard.Loading, error) {
	var result *yard.Loading
	err := s.orch.Mutate(ctx, operation.KindUpdate, operation.RecordLoading, id, func(doc *yard.Document) error {
		loading := doc.FindLoading(id)
		if loading == nil {
			return errors.NewError(errors.CodeNotFound, "loading "+id+" not found", errors.ErrLoadingNotFound)
		}
		if err := loading.Transition(to, time.Now().UTC(), detail); err != nil {
			return err
		}
		if extra != nil {
			extra(loading)
		}
		result = loading.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update changes record fields without touching the status machine.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*yard.Loading, error) {
	var result *yard.Loading
	err := s.orch.Mutate(ctx, operation.KindUpdate, operation.RecordLoading, id, func(doc *yard.Document) error {
		loading := doc.FindLoading(id)
		if loading == nil {
			return errors.NewError(errors.CodeNotFound, "loading "+id+" not found", errors.ErrLoadingNotFound)
		}
		if input.CustomerName != nil {
			loading.CustomerName = *input.CustomerName
		}
		if input.Product != nil {
			loading.Product = *input.Product
		}
		if input.Quantity != nil {
			loading.Quantity = *input.Quantity
		}
		if input.Unit != nil {
			loading.Unit = *input.Unit
		}
		if input.TruckPlate != nil {
			loading.TruckPlate = *input.TruckPlate
		}
		if input.Waybill != nil {
			loading.Waybill = *input.Waybill
		}
		if err := loading.Validate(); err != nil {
			return err
		}
		loading.UpdatedAt = time.Now().UTC()
		result = loading.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a loading. The deletion is shielded until the remote
// confirms it.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.orch.Mutate(ctx, operation.KindDelete, operation.RecordLoading, id, func(doc *yard.Document) error {
		if !doc.RemoveLoading(id) {
			return errors.NewError(errors.CodeNotFound, "loading "+id+" not found", errors.ErrLoadingNotFound)
		}
		return nil
	})
}

// Reset clears the loading collection and supersedes everything pending.
func (s *Service) Reset(ctx context.Context) error {
	return s.orch.Mutate(ctx, operation.KindReset, operation.RecordDocument, "", func(doc *yard.Document) error {
		doc.Loadings = []yard.Loading{}
		return nil
	})
}

// List returns all loadings from the local view.
func (s *Service) List(ctx context.Context) ([]yard.Loading, error) {
	doc, err := s.orch.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Loadings, nil
}

// Get returns one loading by ID.
func (s *Service) Get(ctx context.Context, id string) (*yard.Loading, error) {
	doc, err := s.orch.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	loading := doc.FindLoading(id)
	if loading == nil {
		return nil, errors.NewError(errors.CodeNotFound, "loading "+id+" not found", errors.ErrLoadingNotFound)
	}
	return loading, nil
}
