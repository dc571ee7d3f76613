// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"gopkg.in/yaml.v3"

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/components/economy"
	"github.com/holomush/componenthost/internal/components/userdata"
	"github.com/holomush/componenthost/internal/config"
	"github.com/holomush/componenthost/pkg/errutil"
)

// resetDatabase drops the state tables so the next host migrates from scratch.
func resetDatabase() {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, databaseURL)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = conn.Close(ctx) }()

	_, err = conn.Exec(ctx, `DROP TABLE IF EXISTS component_state, runtime_flags, schema_migrations`)
	Expect(err).NotTo(HaveOccurred())
}

func stateOf(cfg *config.Config, id component.ID) component.State {
	statuses, err := client(cfg).Components(context.Background(), string(id))
	Expect(err).NotTo(HaveOccurred())
	Expect(statuses).To(HaveLen(1))
	return statuses[0].State
}

var _ = Describe("Host restarts", func() {
	backends := []struct {
		name  string
		setup func(*config.Config)
	}{
		{name: config.BackendFile, setup: func(*config.Config) {}},
		{name: config.BackendPostgres, setup: func(cfg *config.Config) {
			resetDatabase()
			cfg.State.Backend = config.BackendPostgres
			cfg.State.DatabaseURL = databaseURL
		}},
	}

	for _, backend := range backends {
		Context("with the "+backend.name+" backend", func() {
			var cfg *config.Config

			BeforeEach(func() {
				cfg = newConfig()
				backend.setup(cfg)
			})

			It("keeps component data across a clean restart", func() {
				h := boot(cfg)
				_, err := as(h, "ann", "join")
				Expect(err).NotTo(HaveOccurred())
				_, err = as(h, "bob", "join")
				Expect(err).NotTo(HaveOccurred())
				out, err := as(h, "ann", "pay bob 40")
				Expect(err).NotTo(HaveOccurred())
				Expect(out).To(Equal("paid 40 coins to bob\n"))
				stop(h)

				h = boot(cfg)
				defer stop(h)
				out, err = as(h, "bob", "balance")
				Expect(err).NotTo(HaveOccurred())
				Expect(out).To(Equal("bob: 140 coins\n"))
			})

			It("skips a disabled component and its dependents on the next start", func() {
				h := boot(cfg)
				res, err := client(cfg).Action(context.Background(), string(userdata.ID), "disable")
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Changed).To(BeTrue())
				stop(h)

				h = boot(cfg)
				defer stop(h)
				Expect(stateOf(cfg, userdata.ID)).To(Equal(component.StateSkipped))
				Expect(stateOf(cfg, economy.ID)).To(Equal(component.StateFailed))

				_, err = as(h, "ann", "balance")
				Expect(errutil.Code(err)).To(Equal("COMMAND_NOT_FOUND"))
			})

			It("applies an admin enable on the next start only", func() {
				h := boot(cfg)
				_, err := client(cfg).Action(context.Background(), string(economy.ID), "disable")
				Expect(err).NotTo(HaveOccurred())
				stop(h)

				h = boot(cfg)
				Expect(stateOf(cfg, economy.ID)).To(Equal(component.StateSkipped))
				res, err := client(cfg).Action(context.Background(), string(economy.ID), "enable")
				Expect(err).NotTo(HaveOccurred())
				Expect(res.RestartRequired).To(BeTrue())
				Expect(stateOf(cfg, economy.ID)).To(Equal(component.StateSkipped))
				stop(h)

				h = boot(cfg)
				defer stop(h)
				Expect(stateOf(cfg, economy.ID)).To(Equal(component.StateEnabled))
			})

			It("resets enabled components once when asked", func() {
				h := boot(cfg)
				_, err := as(h, "ann", "join")
				Expect(err).NotTo(HaveOccurred())
				stop(h)

				cfg.Reset = true
				h = boot(cfg)
				_, err = as(h, "ann", "balance")
				Expect(errutil.Code(err)).To(Equal(userdata.CodeUserNotFound))
				_, err = as(h, "ann", "join")
				Expect(err).NotTo(HaveOccurred())
				stop(h)

				cfg.Reset = false
				h = boot(cfg)
				defer stop(h)
				out, err := as(h, "ann", "balance")
				Expect(err).NotTo(HaveOccurred())
				Expect(out).To(Equal("ann: 100 coins\n"))
			})
		})
	}

	It("writes the enabled flags of every registered component to components.yml", func() {
		cfg := newConfig()
		h := boot(cfg)
		stop(h)

		data, err := os.ReadFile(filepath.Join(cfg.DataDir, cfg.State.ComponentsFile))
		Expect(err).NotTo(HaveOccurred())
		var flags map[string]bool
		Expect(yaml.Unmarshal(data, &flags)).To(Succeed())
		Expect(flags).To(HaveKeyWithValue(string(userdata.ID), true))
		Expect(flags).To(HaveKeyWithValue(string(economy.ID), true))
	})
})
