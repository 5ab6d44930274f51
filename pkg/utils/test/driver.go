package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/storage/inmemory"
)

// CountingDriver wraps the in-memory driver, counting writes and optionally
// failing or blocking them. Writes made through the embedded Driver directly
// are not counted.
type CountingDriver struct {
	*inmemory.Driver

	mu      sync.Mutex
	inserts int
	updates int
	failure error
	gate    chan struct{}
}

var _ storage.Driver = (*CountingDriver)(nil)

// NewCountingDriver returns a CountingDriver over a fresh in-memory store.
func NewCountingDriver() *CountingDriver {
	return &CountingDriver{Driver: inmemory.NewDriver()}
}

// Insert counts and forwards the insert.
func (d *CountingDriver) Insert(ctx context.Context, ownerID string, doc storage.Document) (string, error) {
	if err := d.enter(); err != nil {
		return "", err
	}
	d.mu.Lock()
	d.inserts++
	d.mu.Unlock()
	return d.Driver.Insert(ctx, ownerID, doc)
}

// Update counts and forwards the update.
func (d *CountingDriver) Update(ctx context.Context, id string, patch storage.Patch) error {
	if err := d.enter(); err != nil {
		return err
	}
	d.mu.Lock()
	d.updates++
	d.mu.Unlock()
	return d.Driver.Update(ctx, id, patch)
}

func (d *CountingDriver) enter() error {
	d.mu.Lock()
	gate, err := d.gate, d.failure
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

// SetFailure makes every following write return err. Nil clears it.
func (d *CountingDriver) SetFailure(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failure = err
}

// SetGate blocks every following write until gate is closed. Nil clears it.
func (d *CountingDriver) SetGate(gate chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate = gate
}

// Inserts returns the number of counted inserts.
func (d *CountingDriver) Inserts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inserts
}

// Updates returns the number of counted updates.
func (d *CountingDriver) Updates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updates
}
