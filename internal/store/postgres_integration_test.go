// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/componenthost/internal/component"
	"github.com/holomush/componenthost/internal/store"
	"github.com/holomush/componenthost/pkg/errutil"
)

var _ = Describe("PostgresStateStore", func() {
	var (
		ctx      context.Context
		migrator *store.Migrator
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		migrator, err = store.NewMigrator(databaseURL)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = migrator.Close() })
	})

	Describe("before migrations", func() {
		It("reports the missing schema", func() {
			Expect(migrator.Down()).To(Succeed())

			s, err := store.Connect(ctx, databaseURL, 10*time.Second, nil)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			err = s.Load(ctx)
			Expect(errutil.HasCode(err, store.CodeSchemaMissing)).To(BeTrue())
		})
	})

	Describe("after migrations", func() {
		var s *store.PostgresStateStore

		BeforeEach(func() {
			Expect(migrator.Down()).To(Succeed())
			Expect(migrator.Up()).To(Succeed())

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(2)))
			Expect(dirty).To(BeFalse())

			s, err = store.Connect(ctx, databaseURL, 10*time.Second, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(s.Close)
		})

		It("round-trips enabled flags", func() {
			Expect(s.Load(ctx)).To(Succeed())
			s.Mark("userdata", true)
			s.Mark("economy", true)
			Expect(s.Flush(ctx)).To(Succeed())
			Expect(s.MarkAndPersist(ctx, "economy", false)).To(Succeed())

			reloaded, err := store.Connect(ctx, databaseURL, 10*time.Second, nil)
			Expect(err).NotTo(HaveOccurred())
			defer reloaded.Close()

			Expect(reloaded.Load(ctx)).To(Succeed())
			Expect(reloaded.IsEnabled("userdata", false)).To(BeTrue())
			Expect(reloaded.IsEnabled("economy", true)).To(BeFalse())
			Expect(reloaded.IsEnabled(component.ID("unknown"), true)).To(BeTrue())
		})

		It("starts with the reset flag cleared", func() {
			requested, err := s.ResetRequested(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(requested).To(BeFalse())

			Expect(s.RequestReset(ctx)).To(Succeed())
			requested, err = s.ResetRequested(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(requested).To(BeTrue())

			Expect(s.ClearReset(ctx)).To(Succeed())
			requested, err = s.ResetRequested(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(requested).To(BeFalse())
		})

		It("steps down and back up", func() {
			Expect(migrator.Steps(-1)).To(Succeed())
			pending, err := migrator.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(Equal([]uint{2}))

			Expect(migrator.Steps(1)).To(Succeed())
			applied, err := migrator.Applied()
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(Equal([]uint{1, 2}))
		})
	})
})
