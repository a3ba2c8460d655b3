// Package adoption keeps adoption applications and their status history in
// the persistent store.
//
// The collection is one JSON array under store.KeyApplications, kept in
// submission order. Entries that cannot be decoded are reported, hidden from
// reads and carried through rewrites unchanged.
package adoption

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/pkg/errs"
	"julianmorley.ca/con-plar/petstore/pkg/metrics"
	"julianmorley.ca/con-plar/petstore/pkg/models"
	"julianmorley.ca/con-plar/petstore/pkg/store"
)

type Registry struct {
	mu     sync.Mutex
	store  store.Store
	now    func() time.Time
	newID  func() string
	report func(error)
}

type Option func(*Registry)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) { r.newID = newID }
}

// WithErrorReporter receives read-path problems (corrupt entries, unreadable
// store) that do not fail the call. The default logs them.
func WithErrorReporter(report func(error)) Option {
	return func(r *Registry) { r.report = report }
}

func NewRegistry(s store.Store, opts ...Option) *Registry {
	r := &Registry{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		report: func(err error) {
			log.WithError(err).WithField("key", store.KeyApplications).Warn("Adoption application storage problem")
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// entry pairs a stored element with its decoded form; app is nil when the
// element is corrupt.
type entry struct {
	raw json.RawMessage
	app *models.Application
}

// SaveApplication records a new pending application and returns it. On error
// nothing was saved.
func (r *Registry) SaveApplication(ctx context.Context, input models.ApplicationInput) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	app := models.Application{
		ID:        r.newID(),
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		StatusHistory: models.NewStatusHistory(models.StatusEntry{
			Status: models.StatusPending,
			Date:   now,
			Note:   models.SubmittedNote,
		}),
		Applicant: input.Applicant,
	}
	if input.SelectedPet != nil {
		pet := *input.SelectedPet
		app.SelectedPet = &pet
	}

	raw, err := json.Marshal(app)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "encode", Key: store.KeyApplications, Cause: err}
	}
	entries = append(entries, entry{raw: raw, app: &app})
	if err := r.save(ctx, entries); err != nil {
		return nil, err
	}

	metrics.AdoptionApplications.WithLabelValues("created").Inc()
	log.WithFields(log.Fields{
		"application_id": app.ID,
		"email":          app.Email,
	}).Info("Sending adoption application confirmation email")

	return &app, nil
}

// UpdateApplication applies patch to application id. A status change appends
// one history entry, using note or a default text. UpdatedAt always moves.
func (r *Registry) UpdateApplication(ctx context.Context, id string, patch models.ApplicationPatch, note string) (*models.Application, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, &errs.ValidationError{
			Field:   "status",
			Rule:    "oneof",
			Message: fmt.Sprintf("Unknown application status %q", *patch.Status),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	i := indexOf(entries, id)
	if i < 0 {
		return nil, &errs.NotFoundError{Resource: "application", ID: id}
	}

	app := *entries[i].app
	now := r.now()

	statusChanged := patch.Status != nil && *patch.Status != app.Status
	if statusChanged {
		if note == "" {
			note = fmt.Sprintf("Status updated to %s", *patch.Status)
		}
		app.StatusHistory.Append(models.StatusEntry{Status: *patch.Status, Date: now, Note: note})
	}
	patch.ApplyFields(&app)
	app.UpdatedAt = now

	raw, err := json.Marshal(app)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "encode", Key: store.KeyApplications, Cause: err}
	}
	updated := make([]entry, len(entries))
	copy(updated, entries)
	updated[i] = entry{raw: raw, app: &app}
	if err := r.save(ctx, updated); err != nil {
		return nil, err
	}

	metrics.AdoptionApplications.WithLabelValues("updated").Inc()
	if statusChanged {
		log.WithFields(log.Fields{
			"application_id": app.ID,
			"email":          app.Email,
			"status":         app.Status,
		}).Info("Sending adoption status update email")
	}

	return &app, nil
}

// GetAllApplications returns every readable application in storage order.
// It never fails; problems go to the error reporter.
func (r *Registry) GetAllApplications(ctx context.Context) []models.Application {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		r.report(err)
		return []models.Application{}
	}

	apps := make([]models.Application, 0, len(entries))
	for _, e := range entries {
		if e.app != nil {
			apps = append(apps, *e.app)
		}
	}
	return apps
}

func (r *Registry) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(entries, id)
	if i < 0 {
		return nil, &errs.NotFoundError{Resource: "application", ID: id}
	}
	app := *entries[i].app
	return &app, nil
}

// DeleteApplication removes id if present.
func (r *Registry) DeleteApplication(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}

	kept := make([]entry, 0, len(entries))
	for _, e := range entries {
		if e.app != nil && e.app.ID == id {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(entries) {
		return nil
	}
	if err := r.save(ctx, kept); err != nil {
		return err
	}
	metrics.AdoptionApplications.WithLabelValues("deleted").Inc()
	return nil
}

// load reads the collection. A store read failure is returned; a document
// that is not an array is reported and treated as empty.
func (r *Registry) load(ctx context.Context) ([]entry, error) {
	value, ok, err := r.store.Get(ctx, store.KeyApplications)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "read", Key: store.KeyApplications, Cause: err}
	}
	if !ok || value == "" {
		return nil, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(value), &raws); err != nil {
		r.report(&errs.PersistenceError{Op: "decode", Key: store.KeyApplications, Cause: err})
		return nil, nil
	}

	entries := make([]entry, 0, len(raws))
	for i, raw := range raws {
		var app models.Application
		err := json.Unmarshal(raw, &app)
		switch {
		case err != nil:
		case app.ID == "":
			err = fmt.Errorf("entry has no id")
		case app.StatusHistory.Len() == 0:
			err = fmt.Errorf("entry %s has no status history", app.ID)
		}
		if err != nil {
			r.report(&errs.PersistenceError{
				Op:    "decode",
				Key:   fmt.Sprintf("%s[%d]", store.KeyApplications, i),
				Cause: err,
			})
			entries = append(entries, entry{raw: raw})
			continue
		}
		entries = append(entries, entry{raw: raw, app: &app})
	}
	return entries, nil
}

func (r *Registry) save(ctx context.Context, entries []entry) error {
	raws := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		raws = append(raws, e.raw)
	}
	if err := store.SaveJSON(ctx, r.store, store.KeyApplications, raws); err != nil {
		log.WithError(err).Error("Failed to persist adoption applications")
		return err
	}
	return nil
}

func indexOf(entries []entry, id string) int {
	for i, e := range entries {
		if e.app != nil && e.app.ID == id {
			return i
		}
	}
	return -1
}
