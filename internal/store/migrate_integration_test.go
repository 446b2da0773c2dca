// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/accounts/internal/store"
)

var _ = Describe("Migrator lifecycle", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		conn      *pgx.Conn
		migrator  *store.Migrator
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("accounts_migrate"),
			postgres.WithUsername("accounts"),
			postgres.WithPassword("accounts"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
		conn, err = pgx.Connect(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if migrator != nil {
			_ = migrator.Close()
		}
		if conn != nil {
			_ = conn.Close(ctx)
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	hasColumn := func(column string) bool {
		var found bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'users' AND column_name = $1)`, column).Scan(&found)
		Expect(err).NotTo(HaveOccurred())
		return found
	}

	version := func() uint {
		v, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		return v
	}

	It("starts from an empty database", func() {
		Expect(version()).To(BeZero())
		Expect(hasColumn("email")).To(BeFalse())
	})

	It("creates the users table with profile columns", func() {
		Expect(migrator.Up()).To(Succeed())
		Expect(version()).To(Equal(uint(2)))
		Expect(hasColumn("remember_generation")).To(BeTrue())
		Expect(hasColumn("job_title")).To(BeTrue())

		Expect(migrator.Up()).To(Succeed(), "an up-to-date schema is not an error")
	})

	It("steps the profile columns back and forth", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		Expect(version()).To(Equal(uint(1)))
		Expect(hasColumn("job_title")).To(BeFalse())
		Expect(hasColumn("email")).To(BeTrue())

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(hasColumn("job_title")).To(BeTrue())
	})

	It("drops everything on down", func() {
		Expect(migrator.Down()).To(Succeed())
		Expect(version()).To(BeZero())
		Expect(hasColumn("email")).To(BeFalse())
	})

	It("forces a version without running migrations", func() {
		Expect(migrator.Force(1)).To(Succeed())
		Expect(version()).To(Equal(uint(1)))
		Expect(hasColumn("email")).To(BeFalse())
	})
})
