// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package admin

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/integration"
	"github.com/holomush/componenthost/pkg/errutil"
)

type stub struct {
	component.Base
	saves int
}

func (s *stub) Save(context.Context) error {
	s.saves++
	return nil
}

func newAdminFixture(t *testing.T) (*integration.Hub, *component.MemoryStore, *stub) {
	t.Helper()
	store := component.NewMemoryStore()
	hub := integration.NewHub(quietLogger())
	m := component.NewManager(
		component.WithEnabledStore(store),
		component.WithIntegrator(hub),
		component.WithLogger(quietLogger()),
	)

	users := &stub{Base: component.NewBase("userdata")}
	require.NoError(t, m.Register(users))
	require.NoError(t, m.Register(&stub{Base: component.NewBase("economy", component.WithHardDependencies("userdata"))}))
	require.NoError(t, m.Start(context.Background()))

	svc := NewService(m, store, quietLogger())
	require.NoError(t, hub.RegisterIntegration("host", svc.Command()))
	return hub, store, users
}

func run(t *testing.T, hub *integration.Hub, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := hub.Dispatch(context.Background(), input, &out, integration.Caller{Name: "op", Operator: true})
	return out.String(), err
}

func TestComponentsCommand_List(t *testing.T) {
	hub, _, _ := newAdminFixture(t)

	out, err := run(t, hub, "components")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "userdata")
	assert.Contains(t, out, "economy")

	out, err = run(t, hub, "components list user*")
	require.NoError(t, err)
	assert.Contains(t, out, "userdata")
	assert.NotContains(t, out, "economy")

	out, err = run(t, hub, "components list chat")
	require.NoError(t, err)
	assert.Equal(t, "no components match\n", out)
}

func TestComponentsCommand_DisableAndEnable(t *testing.T) {
	hub, store, _ := newAdminFixture(t)

	out, err := run(t, hub, "components disable economy")
	require.NoError(t, err)
	assert.Equal(t, "component economy disabled\n", out)
	assert.False(t, store.IsEnabled("economy", true))

	out, err = run(t, hub, "components enable economy")
	require.NoError(t, err)
	assert.Contains(t, out, "next start")
	assert.True(t, store.IsEnabled("economy", false))
}

func TestComponentsCommand_EnableRunning(t *testing.T) {
	hub, store, _ := newAdminFixture(t)

	out, err := run(t, hub, "components enable userdata")
	require.NoError(t, err)
	assert.Equal(t, "component userdata is already running\n", out)
	assert.True(t, store.IsEnabled("userdata", false))
}

func TestComponentsCommand_Save(t *testing.T) {
	hub, _, users := newAdminFixture(t)

	_, err := run(t, hub, "components save userdata")
	require.NoError(t, err)
	_, err = run(t, hub, "components save")
	require.NoError(t, err)
	assert.Equal(t, 2, users.saves)
}

func TestComponentsCommand_Errors(t *testing.T) {
	hub, _, _ := newAdminFixture(t)

	_, err := run(t, hub, "components enable")
	errutil.AssertErrorCode(t, err, "INVALID_USAGE")

	_, err = run(t, hub, "components frobnicate")
	errutil.AssertErrorCode(t, err, "INVALID_USAGE")

	_, err = run(t, hub, "components reload economy")
	errutil.AssertErrorCode(t, err, component.CodeInvalidComponent)

	err = hub.Dispatch(context.Background(), "components", &bytes.Buffer{}, integration.Caller{Name: "guest"})
	errutil.AssertErrorCode(t, err, integration.CodePermissionDenied)
}

func TestComponentsCommand_Reset(t *testing.T) {
	hub, store, _ := newAdminFixture(t)

	out, err := run(t, hub, "components reset")
	require.NoError(t, err)
	assert.Contains(t, out, "next start")
	requested, err := store.ResetRequested(context.Background())
	require.NoError(t, err)
	assert.True(t, requested)
}
