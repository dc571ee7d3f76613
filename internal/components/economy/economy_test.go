// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package economy_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/components/economy"
	"github.com/holomush/componenthost/internal/components/userdata"
	"github.com/holomush/componenthost/internal/integration"
	"github.com/holomush/componenthost/pkg/errutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	hub     *integration.Hub
	manager *component.Manager
	users   *userdata.Component
	eco     *economy.Component
}

// start registers economy before userdata to exercise dependency ordering.
func start(t *testing.T, dir string, opts ...economy.Option) *fixture {
	t.Helper()
	hub := integration.NewHub(discard())
	m := component.NewManager(
		component.WithIntegrator(hub),
		component.WithDataDir(dir),
		component.WithLogger(discard()),
	)
	eco := economy.New(discard(), opts...)
	users := userdata.New(hub, discard())
	require.NoError(t, m.Register(eco))
	require.NoError(t, m.Register(users))
	require.NoError(t, m.Start(context.Background()))
	require.True(t, eco.IsEnabled())
	return &fixture{hub: hub, manager: m, users: users, eco: eco}
}

func (f *fixture) run(t *testing.T, caller, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := f.hub.Dispatch(context.Background(), input, &out, integration.Caller{Name: caller})
	return out.String(), err
}

func (f *fixture) join(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		_, err := f.run(t, n, "join")
		require.NoError(t, err)
	}
}

func TestActivationOrder(t *testing.T) {
	f := start(t, "")

	ids := make([]component.ID, 0, 2)
	for _, c := range f.manager.Order() {
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []component.ID{userdata.ID, economy.ID}, ids)
}

func TestJoinOpensAccount(t *testing.T) {
	f := start(t, "", economy.WithStartingBalance(50))
	f.join(t, "ann")

	out, err := f.run(t, "ann", "balance")
	require.NoError(t, err)
	assert.Equal(t, "ann: 50 coins\n", out)
}

func TestPay(t *testing.T) {
	f := start(t, "")
	f.join(t, "ann", "bob")

	_, err := f.run(t, "ann", "pay bob 30")
	require.NoError(t, err)

	ann, err := f.eco.Balance("ann")
	require.NoError(t, err)
	bob, err := f.eco.Balance("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(70), ann)
	assert.Equal(t, int64(130), bob)
}

func TestPay_Errors(t *testing.T) {
	f := start(t, "")
	f.join(t, "ann", "bob")

	tests := []struct {
		input string
		code  string
	}{
		{"pay bob 1000", economy.CodeInsufficientFunds},
		{"pay bob -5", economy.CodeInvalidAmount},
		{"pay bob lots", economy.CodeInvalidAmount},
		{"pay ann 5", economy.CodeInvalidAmount},
		{"pay nobody 5", userdata.CodeUserNotFound},
		{"pay bob", economy.CodeInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := f.run(t, "ann", tt.input)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}

	bal, err := f.eco.Balance("ann")
	require.NoError(t, err)
	assert.Equal(t, economy.DefaultStartingBalance, bal, "failed payments move nothing")
}

func TestBalanceTop(t *testing.T) {
	f := start(t, "")
	f.join(t, "ann", "bob", "cat")
	require.NoError(t, f.eco.Pay("ann", "cat", 40))

	out, err := f.run(t, "bob", "balancetop 2")
	require.NoError(t, err)
	assert.Equal(t, "--- top coins ---\n1. cat: 140\n2. bob: 100\n", out)
}

func TestBalanceTop_Empty(t *testing.T) {
	f := start(t, "", economy.WithCurrency("gems"))

	out, err := f.run(t, "ann", "balancetop")
	require.NoError(t, err)
	assert.Equal(t, "nobody has any gems\n", out)
}

func TestResetClearsBalances(t *testing.T) {
	f := start(t, "")
	f.join(t, "ann")

	f.manager.ResetAll(context.Background())

	_, err := f.eco.Balance("ann")
	errutil.AssertErrorCode(t, err, userdata.CodeUserNotFound)
	assert.Empty(t, f.eco.Top(0))
}

func TestBalancesSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	f := start(t, dir)
	f.join(t, "ann", "bob")
	require.NoError(t, f.eco.Pay("ann", "bob", 25))
	f.manager.DisableAll(ctx)

	g := start(t, dir)
	bal, err := g.eco.Balance("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(125), bal)
}

func TestReloadDropsUnsavedChanges(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	f := start(t, dir)
	f.join(t, "ann", "bob")
	f.manager.SaveAll(ctx)
	require.NoError(t, f.eco.Pay("ann", "bob", 10))

	require.NoError(t, f.manager.ReloadComponent(ctx, economy.ID))

	bal, err := f.eco.Balance("ann")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)
}

func TestDisabledUserdataFailsEconomy(t *testing.T) {
	hub := integration.NewHub(discard())
	store := component.NewMemoryStore()
	store.Mark(userdata.ID, false)
	m := component.NewManager(component.WithIntegrator(hub), component.WithEnabledStore(store), component.WithLogger(discard()))

	eco := economy.New(discard())
	require.NoError(t, m.Register(userdata.New(hub, discard())))
	require.NoError(t, m.Register(eco))
	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, component.StateFailed, eco.State(), "enable fails without an enabled userdata")
	for _, cmd := range hub.Commands() {
		assert.NotEqual(t, "pay", cmd.Name)
	}
}
