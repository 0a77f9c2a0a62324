package app_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stencilcms/stencil/adapters/clock"
	"github.com/stencilcms/stencil/adapters/idgen"
	"github.com/stencilcms/stencil/adapters/memory"
	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/core/events"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/fields"
)

// recordingNotifier captures fanned-out events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []webhook.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, event webhook.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []webhook.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]webhook.Event, len(n.events))
	copy(out, n.events)
	return out
}

// fixture wires the services over the in-memory adapters.
type fixture struct {
	schemas   *memory.SchemaStore
	fieldDefs *memory.FieldStore
	documents *memory.DocumentStore
	revisions *memory.RevisionStore
	bus       *events.Bus
	notifier  *recordingNotifier
	clock     *clock.Fake
	reloads   *int

	schemaSvc *app.SchemaService
	fieldSvc  *app.FieldService
	docSvc    *app.DocumentService
}

func newFixture() *fixture {
	logger := zerolog.Nop()
	fieldDefs := memory.NewFieldStore()
	schemas := memory.NewSchemaStore(fieldDefs)
	documents := memory.NewDocumentStore()
	revisions := memory.NewRevisionStore()
	fake := clock.NewFake(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	ids := idgen.NewSequential("id-")
	lifecycle := memory.NewFieldLifecycle(fieldDefs, documents, revisions, fake, idgen.NewSequential("rev-"))
	bus := events.NewBus(logger)
	notifier := &recordingNotifier{}
	registry := fields.Builtin()

	reloads := 0
	bus.Subscribe(events.Reload, func(ctx context.Context, e events.Event) error {
		reloads++
		return nil
	})

	return &fixture{
		schemas:   schemas,
		fieldDefs: fieldDefs,
		documents: documents,
		revisions: revisions,
		bus:       bus,
		notifier:  notifier,
		clock:     fake,
		reloads:   &reloads,
		schemaSvc: app.NewSchemaService(schemas, fieldDefs, documents, revisions, lifecycle, bus, notifier, fake, ids, logger),
		fieldSvc:  app.NewFieldService(schemas, fieldDefs, lifecycle, registry, bus, notifier, fake, ids, logger),
		docSvc:    app.NewDocumentService(documents, schemas, revisions, registry, notifier, fake, ids, logger),
	}
}
