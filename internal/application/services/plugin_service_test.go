package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentgate-dev/agentgate/internal/application/errors"
	"github.com/agentgate-dev/agentgate/internal/domain/capabilities"
	"github.com/agentgate-dev/agentgate/internal/domain/entities"
	"github.com/agentgate-dev/agentgate/internal/domain/values"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/persistence/memory"
)

type stubParser struct {
	manifest capabilities.Manifest
	err      error
}

func (p stubParser) Parse([]byte) (capabilities.Manifest, error) {
	return p.manifest, p.err
}

type stubGuard struct {
	mu      sync.Mutex
	resets  []string
	crashes map[string]int
}

func (g *stubGuard) Reset(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resets = append(g.resets, id)
	delete(g.crashes, id)
}

func (g *stubGuard) RecordCrash(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.crashes == nil {
		g.crashes = make(map[string]int)
	}
	g.crashes[id]++
	return g.crashes[id]
}

type stubLoader struct {
	mu      sync.Mutex
	loadErr error
	loads   []string
	unloads []string
}

func (l *stubLoader) Load(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads = append(l.loads, id)
	return l.loadErr
}

func (l *stubLoader) Unload(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unloads = append(l.unloads, id)
}

func (l *stubLoader) unloaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.unloads...)
}

type pluginFixture struct {
	service   *PluginService
	plugins   *memory.PluginRepository
	events    *memory.EventRepository
	ledger    *DisclosureLedger
	auditRepo *memory.AuditRepository
	guard     *stubGuard
	loader    *stubLoader
}

func analyticsManifest() capabilities.Manifest {
	return capabilities.Manifest{
		Name:    "analytics",
		Version: "1.2.0",
		Permissions: capabilities.PermissionSet{
			Network: capabilities.NetworkPermission{Hosts: []string{"graph.facebook.com"}},
			Secrets: []string{"instagram_token"},
		},
	}
}

func newPluginFixture(t *testing.T, mode values.TrustMode, parser stubParser) *pluginFixture {
	t.Helper()
	plugins := memory.NewPluginRepository()
	events := memory.NewEventRepository()
	ledger := NewDisclosureLedger(memory.NewDisclosureRepository())
	auditRepo := memory.NewAuditRepository()
	guard := &stubGuard{}
	loader := &stubLoader{}

	service := NewPluginService(
		plugins, events, ledger, parser,
		loader, guard,
		NewAuditTrail(auditRepo, nil, nil),
		mode, nil,
	)
	return &pluginFixture{
		service: service, plugins: plugins, events: events,
		ledger: ledger, auditRepo: auditRepo, guard: guard,
		loader: loader,
	}
}

func (f *pluginFixture) pluginEvents(t *testing.T, id string) []entities.PluginEvent {
	t.Helper()
	events, err := f.events.ListByPlugin(context.Background(), id, 0)
	require.NoError(t, err)
	return events
}

func TestPluginService_Install_External(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})

	plugin, err := f.service.Install(context.Background(), "acme.analytics", entities.SourceExternal, nil)

	require.NoError(t, err)
	assert.False(t, plugin.Enabled)
	assert.Equal(t, "1.2.0", plugin.CurrentVersion)
	assert.Len(t, plugin.Declared, 2)

	rows, err := f.ledger.Rows(context.Background(), "acme.analytics")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.False(t, row.Acknowledged)
	}

	events := f.pluginEvents(t, "acme.analytics")
	require.Len(t, events, 1)
	assert.Equal(t, "install", events[0].Action)
	assert.Equal(t, entities.EventOK, events[0].Status)
}

func TestPluginService_Install_BuiltinAutoAcknowledged(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})

	plugin, err := f.service.Install(context.Background(), "core.http", entities.SourceBuiltin, nil)

	require.NoError(t, err)
	assert.True(t, plugin.Enabled)

	rows, err := f.ledger.Rows(context.Background(), "core.http")
	require.NoError(t, err)
	for _, row := range rows {
		assert.True(t, row.Acknowledged)
	}
}

func TestPluginService_Install_FakeBuiltinForbidden(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})

	_, err := f.service.Install(context.Background(), "acme.sneaky", entities.SourceBuiltin, nil)

	var forbidden *apperrors.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}

func TestPluginService_Install_LockedDeployment(t *testing.T) {
	f := newPluginFixture(t, values.TrustSaasLocked, stubParser{manifest: analyticsManifest()})

	_, err := f.service.Install(context.Background(), "acme.analytics", entities.SourceExternal, nil)

	assert.True(t, apperrors.IsTrustModeBlocked(err))

	// Nothing persisted, exactly one tagged blocked event.
	_, findErr := f.plugins.FindByID(context.Background(), "acme.analytics")
	assert.Error(t, findErr)

	events := f.pluginEvents(t, "acme.analytics")
	require.Len(t, events, 1)
	assert.Equal(t, entities.EventBlocked, events[0].Status)
	assert.Equal(t, "trust_mode_locked", events[0].Tag)
}

func TestPluginService_Install_LockedAllowsBuiltin(t *testing.T) {
	f := newPluginFixture(t, values.TrustSaasLocked, stubParser{manifest: analyticsManifest()})

	plugin, err := f.service.Install(context.Background(), "core.http", entities.SourceBuiltin, nil)

	require.NoError(t, err)
	assert.True(t, plugin.Enabled)
}

func TestPluginService_Install_MalformedManifestFailsClosed(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{err: errors.New("yaml: bad indent")})

	_, err := f.service.Install(context.Background(), "acme.analytics", entities.SourceExternal, []byte("perm: [[["))

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)

	_, findErr := f.plugins.FindByID(context.Background(), "acme.analytics")
	assert.Error(t, findErr)
}

func TestPluginService_Install_InvalidSemver(t *testing.T) {
	manifest := analyticsManifest()
	manifest.Version = "latest"
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: manifest})

	_, err := f.service.Install(context.Background(), "acme.analytics", entities.SourceExternal, nil)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestPluginService_Reinstall_PreservesAcknowledgments(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})
	ctx := context.Background()

	_, err := f.service.Install(ctx, "acme.analytics", entities.SourceExternal, nil)
	require.NoError(t, err)
	_, err = f.service.Enable(ctx, "acme.analytics", true)
	require.NoError(t, err)

	_, err = f.service.Install(ctx, "acme.analytics", entities.SourceExternal, nil)
	require.NoError(t, err)

	rows, err := f.ledger.Rows(ctx, "acme.analytics")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.Acknowledged, "reinstall must not reset %s", row.Capability)
	}
}

func TestPluginService_Enable_WithoutConsent(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})
	ctx := context.Background()
	_, err := f.service.Install(ctx, "acme.analytics", entities.SourceExternal, nil)
	require.NoError(t, err)

	_, err = f.service.Enable(ctx, "acme.analytics", false)

	assert.True(t, apperrors.IsConsentRequired(err))

	plugin, err := f.plugins.FindByID(ctx, "acme.analytics")
	require.NoError(t, err)
	assert.False(t, plugin.Enabled)

	// Declining consent is not a lifecycle event.
	events := f.pluginEvents(t, "acme.analytics")
	require.Len(t, events, 1)
	assert.Equal(t, "install", events[0].Action)
}

func TestPluginService_Enable_AcknowledgesDisclosures(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})
	ctx := context.Background()
	_, err := f.service.Install(ctx, "acme.analytics", entities.SourceExternal, nil)
	require.NoError(t, err)

	plugin, err := f.service.Enable(ctx, "acme.analytics", true)

	require.NoError(t, err)
	assert.True(t, plugin.Enabled)
	assert.Equal(t, []string{"acme.analytics"}, f.guard.resets)

	detail, err := f.service.Get(ctx, "acme.analytics", 10)
	require.NoError(t, err)
	assert.Equal(t, detail.DeclaredCapabilityCount, detail.AcknowledgedDisclosureCount)

	events := f.pluginEvents(t, "acme.analytics")
	var enableEvent *entities.PluginEvent
	for i := range events {
		if events[i].Action == "enable" {
			enableEvent = &events[i]
		}
	}
	require.NotNil(t, enableEvent)
	assert.Contains(t, enableEvent.Detail, "acknowledged on enable")
}

func TestPluginService_Enable_LockedDeployment(t *testing.T) {
	// A plugin installed under a permissive mode still cannot be enabled
	// once the deployment is locked; consent does not matter.
	open := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})
	ctx := context.Background()
	_, err := open.service.Install(ctx, "acme.analytics", entities.SourceExternal, nil)
	require.NoError(t, err)

	locked := newPluginFixture(t, values.TrustSaasLocked, stubParser{manifest: analyticsManifest()})
	locked.plugins = open.plugins
	locked.service = NewPluginService(
		open.plugins, locked.events, locked.ledger, stubParser{manifest: analyticsManifest()},
		nil, locked.guard, NewAuditTrail(locked.auditRepo, nil, nil),
		values.TrustSaasLocked, nil,
	)

	_, err = locked.service.Enable(ctx, "acme.analytics", true)

	assert.True(t, apperrors.IsTrustModeBlocked(err))

	events := locked.pluginEvents(t, "acme.analytics")
	require.Len(t, events, 1)
	assert.Equal(t, entities.EventBlocked, events[0].Status)

	entries, err := locked.auditRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entities.AuditDenied, entries[0].Result)
	assert.Equal(t, "trust_mode_locked", entries[0].Metadata["reason"])
}

func TestPluginService_Enable_NotFound(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})

	_, err := f.service.Enable(context.Background(), "ghost", true)

	assert.True(t, apperrors.IsNotFound(err))
}

func TestPluginService_Disable(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})
	ctx := context.Background()
	_, err := f.service.Install(ctx, "acme.analytics", entities.SourceExternal, nil)
	require.NoError(t, err)
	_, err = f.service.Enable(ctx, "acme.analytics", true)
	require.NoError(t, err)

	require.NoError(t, f.service.Disable(ctx, "acme.analytics"))

	plugin, err := f.plugins.FindByID(ctx, "acme.analytics")
	require.NoError(t, err)
	assert.False(t, plugin.Enabled)
}

func TestPluginService_Disable_UnloadsHandler(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})
	ctx := context.Background()
	_, err := f.service.Install(ctx, "acme.analytics", entities.SourceExternal, nil)
	require.NoError(t, err)
	_, err = f.service.Enable(ctx, "acme.analytics", true)
	require.NoError(t, err)

	require.NoError(t, f.service.Disable(ctx, "acme.analytics"))

	assert.Contains(t, f.loader.unloaded(), "acme.analytics",
		"a disabled plugin's handler must be evicted from the runtime")
}

func TestPluginService_CrashBudget_DisablesPlugin(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})
	ctx := context.Background()
	f.loader.loadErr = errors.New("handler binary missing")

	_, err := f.service.Install(ctx, "acme.analytics", entities.SourceExternal, nil)
	require.NoError(t, err)
	plugin, err := f.plugins.FindByID(ctx, "acme.analytics")
	require.NoError(t, err)
	plugin.Enabled = true
	require.NoError(t, f.plugins.Save(ctx, plugin))

	f.service.runHotLoad(ctx, "acme.analytics")
	f.service.runHotLoad(ctx, "acme.analytics")

	plugin, err = f.plugins.FindByID(ctx, "acme.analytics")
	require.NoError(t, err)
	assert.True(t, plugin.Enabled, "two failures stay within the budget")

	f.service.runHotLoad(ctx, "acme.analytics")

	plugin, err = f.plugins.FindByID(ctx, "acme.analytics")
	require.NoError(t, err)
	assert.False(t, plugin.Enabled, "the third failure trips the crash guard")

	var tripped *entities.PluginEvent
	for _, event := range f.pluginEvents(t, "acme.analytics") {
		if event.Tag == "crash_guard" {
			e := event
			tripped = &e
			break
		}
	}
	require.NotNil(t, tripped)
	assert.Equal(t, entities.EventBlocked, tripped.Status)
	assert.Contains(t, tripped.Detail, "3 times")
}

func TestPluginService_List_Projections(t *testing.T) {
	f := newPluginFixture(t, values.TrustSelfHostGuarded, stubParser{manifest: analyticsManifest()})
	ctx := context.Background()
	_, err := f.service.Install(ctx, "acme.analytics", entities.SourceExternal, nil)
	require.NoError(t, err)

	list, err := f.service.List(ctx)

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].DeclaredCapabilityCount)
	assert.Equal(t, 0, list[0].AcknowledgedDisclosureCount)
	require.Len(t, list[0].DeclaredCapabilities, 2)
	assert.NotEmpty(t, list[0].DeclaredCapabilities[0].Description)
}
