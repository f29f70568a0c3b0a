package yard

import "time"

// SchemaVersion is written into every document so future clients can
// migrate older payloads.
const SchemaVersion = "1"

// Document is the whole synchronized state: every truck and loading,
// plus metadata about the last writer. It is the sole unit of remote
// reads and writes.
type Document struct {
	Trucks       []Truck   `json:"trucks"`
	Loadings     []Loading `json:"loadings"`
	LastModified time.Time `json:"lastModified"`
	Version      string    `json:"version"`
}

// EmptyDocument returns a valid document with no records.
func EmptyDocument() *Document {
	return &Document{
		Trucks:   []Truck{},
		Loadings: []Loading{},
		Version:  SchemaVersion,
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	cp := &Document{
		Trucks:       make([]Truck, 0, len(d.Trucks)),
		Loadings:     make([]Loading, 0, len(d.Loadings)),
		LastModified: d.LastModified,
		Version:      d.Version,
	}
	for i := range d.Trucks {
		cp.Trucks = append(cp.Trucks, *d.Trucks[i].Clone())
	}
	for i := range d.Loadings {
		cp.Loadings = append(cp.Loadings, *d.Loadings[i].Clone())
	}
	return cp
}

// Touch stamps the document as modified now.
func (d *Document) Touch(now time.Time) {
	d.LastModified = now
	if d.Version == "" {
		d.Version = SchemaVersion
	}
}

// FindTruck returns the truck with the given ID, or nil.
func (d *Document) FindTruck(id string) *Truck {
	for i := range d.Trucks {
		if d.Trucks[i].ID == id {
			return &d.Trucks[i]
		}
	}
	return nil
}

// FindLoading returns the loading with the given ID, or nil.
func (d *Document) FindLoading(id string) *Loading {
	for i := range d.Loadings {
		if d.Loadings[i].ID == id {
			return &d.Loadings[i]
		}
	}
	return nil
}

// UpsertTruck inserts or replaces a truck by ID.
func (d *Document) UpsertTruck(t Truck) {
	for i := range d.Trucks {
		if d.Trucks[i].ID == t.ID {
			d.Trucks[i] = t
			return
		}
	}
	d.Trucks = append(d.Trucks, t)
}

// UpsertLoading inserts or replaces a loading by ID.
func (d *Document) UpsertLoading(l Loading) {
	for i := range d.Loadings {
		if d.Loadings[i].ID == l.ID {
			d.Loadings[i] = l
			return
		}
	}
	d.Loadings = append(d.Loadings, l)
}

// RemoveTruck deletes the truck with the given ID. It reports whether
// a record was removed.
func (d *Document) RemoveTruck(id string) bool {
	for i := range d.Trucks {
		if d.Trucks[i].ID == id {
			d.Trucks = append(d.Trucks[:i], d.Trucks[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveLoading deletes the loading with the given ID. It reports
// whether a record was removed.
func (d *Document) RemoveLoading(id string) bool {
	for i := range d.Loadings {
		if d.Loadings[i].ID == id {
			d.Loadings = append(d.Loadings[:i], d.Loadings[i+1:]...)
			return true
		}
	}
	return false
}

// PruneOlderThan removes records created before the cutoff and returns
// how many were dropped. Used by the retention sweep.
func (d *Document) PruneOlderThan(cutoff time.Time) int {
	pruned := 0

	trucks := d.Trucks[:0]
	for i := range d.Trucks {
		if d.Trucks[i].CreatedAt.Before(cutoff) {
			pruned++
			continue
		}
		trucks = append(trucks, d.Trucks[i])
	}
	d.Trucks = trucks

	loadings := d.Loadings[:0]
	for i := range d.Loadings {
		if d.Loadings[i].CreatedAt.Before(cutoff) {
			pruned++
			continue
		}
		loadings = append(loadings, d.Loadings[i])
	}
	d.Loadings = loadings

	return pruned
}

// IsEmpty reports whether the document holds no records.
func (d *Document) IsEmpty() bool {
	return len(d.Trucks) == 0 && len(d.Loadings) == 0
}
