// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/pkg/errutil"
)

type mockManager struct {
	mock.Mock
}

func (m *mockManager) Statuses() []component.Status {
	args := m.Called()
	return args.Get(0).([]component.Status) //nolint:errcheck // test mock
}

func (m *mockManager) LookupEnabled(id component.ID) (component.Component, bool) {
	args := m.Called(id)
	c, _ := args.Get(0).(component.Component) //nolint:errcheck // test mock
	return c, args.Bool(1)
}

func (m *mockManager) SetEnabled(ctx context.Context, id component.ID, enabled bool) (bool, error) {
	args := m.Called(ctx, id, enabled)
	return args.Bool(0), args.Error(1)
}

func (m *mockManager) SaveComponent(ctx context.Context, id component.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockManager) SaveAll(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockManager) ReloadComponent(ctx context.Context, id component.ID) error {
	return m.Called(ctx, id).Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleStatuses() []component.Status {
	return []component.Status{
		{ID: "userdata", State: component.StateEnabled, Enabled: true, Configured: true},
		{ID: "economy", State: component.StateEnabled, Enabled: true, Configured: true, Hard: []component.ID{"userdata"}},
		{ID: "economy.shop", State: component.StateSkipped, Configured: false},
	}
}

func TestService_List(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    []component.ID
	}{
		{name: "all", pattern: "", want: []component.ID{"userdata", "economy", "economy.shop"}},
		{name: "exact", pattern: "economy", want: []component.ID{"economy"}},
		{name: "segment wildcard", pattern: "economy.*", want: []component.ID{"economy.shop"}},
		{name: "prefix", pattern: "econ*", want: []component.ID{"economy"}},
		{name: "super wildcard", pattern: "econ**", want: []component.ID{"economy", "economy.shop"}},
		{name: "none", pattern: "chat", want: []component.ID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockManager{}
			m.On("Statuses").Return(sampleStatuses())
			s := NewService(m, nil, quietLogger())

			got, err := s.List(tt.pattern)
			require.NoError(t, err)
			ids := make([]component.ID, 0, len(got))
			for _, st := range got {
				ids = append(ids, st.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestService_ListInvalidPattern(t *testing.T) {
	m := &mockManager{}
	m.On("Statuses").Return(sampleStatuses())

	_, err := NewService(m, nil, quietLogger()).List("[unclosed")
	errutil.AssertErrorCode(t, err, CodeInvalidPattern)
}

func TestService_Enable(t *testing.T) {
	ctx := context.Background()
	m := &mockManager{}
	m.On("SetEnabled", ctx, component.ID("economy"), true).Return(true, nil)
	m.On("LookupEnabled", component.ID("economy")).Return(nil, false)

	res, err := NewService(m, nil, quietLogger()).Enable(ctx, "economy")
	require.NoError(t, err)
	assert.True(t, res.Enabled)
	assert.True(t, res.RestartRequired)
	assert.True(t, res.Changed)
	assert.Contains(t, res.Message, "next start")
	m.AssertExpectations(t)
}

func TestService_EnableAlreadyRunning(t *testing.T) {
	ctx := context.Background()
	m := &mockManager{}
	running := &stub{Base: component.NewBase("economy")}
	m.On("SetEnabled", ctx, component.ID("economy"), true).Return(false, nil)
	m.On("LookupEnabled", component.ID("economy")).Return(running, true)

	res, err := NewService(m, nil, quietLogger()).Enable(ctx, "economy")
	require.NoError(t, err)
	assert.True(t, res.Enabled)
	assert.False(t, res.RestartRequired)
	assert.False(t, res.Changed)
	assert.Equal(t, "component economy is already running", res.Message)
	m.AssertExpectations(t)
}

func TestService_DisableRunning(t *testing.T) {
	ctx := context.Background()
	m := &mockManager{}
	m.On("SetEnabled", ctx, component.ID("economy"), false).Return(true, nil)

	res, err := NewService(m, nil, quietLogger()).Disable(ctx, "economy")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.Enabled)
	assert.Equal(t, "component economy disabled", res.Message)
}

func TestService_DisableUnknown(t *testing.T) {
	ctx := context.Background()
	m := &mockManager{}
	m.On("SetEnabled", ctx, component.ID("ghost"), false).Return(false, component.ErrUnknownComponent("ghost"))

	res, err := NewService(m, nil, quietLogger()).Disable(ctx, "ghost")
	errutil.AssertErrorCode(t, err, component.CodeUnknownComponent)
	assert.Empty(t, res.ID)
}

func TestService_DisablePersistFailureStillReports(t *testing.T) {
	ctx := context.Background()
	persistErr := component.ErrPersistenceWriteFailed("components.yml", errors.New("disk full"))
	m := &mockManager{}
	m.On("SetEnabled", ctx, component.ID("economy"), false).Return(true, persistErr)

	res, err := NewService(m, nil, quietLogger()).Disable(ctx, "economy")
	errutil.AssertErrorCode(t, err, component.CodePersistenceWriteFailed)
	assert.Equal(t, component.ID("economy"), res.ID)
	assert.True(t, res.Changed)
}

func TestService_SaveAndReloadDelegate(t *testing.T) {
	ctx := context.Background()
	m := &mockManager{}
	m.On("SaveComponent", ctx, component.ID("economy")).Return(nil)
	m.On("SaveAll", ctx).Return()
	m.On("ReloadComponent", ctx, component.ID("economy")).Return(component.ErrNotEnabled("economy"))

	s := NewService(m, nil, quietLogger())
	require.NoError(t, s.Save(ctx, "economy"))
	s.SaveAll(ctx)
	errutil.AssertErrorCode(t, s.Reload(ctx, "economy"), component.CodeNotEnabled)
	m.AssertExpectations(t)
}

func TestService_RequestReset(t *testing.T) {
	ctx := context.Background()

	err := NewService(&mockManager{}, nil, quietLogger()).RequestReset(ctx)
	errutil.AssertErrorCode(t, err, "RESET_UNAVAILABLE")

	flags := component.NewMemoryStore()
	require.NoError(t, NewService(&mockManager{}, flags, quietLogger()).RequestReset(ctx))
	requested, err := flags.ResetRequested(ctx)
	require.NoError(t, err)
	assert.True(t, requested)
}
