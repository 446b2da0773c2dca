// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/accounts/internal/store"
)

var _ = Describe("Pool and schema", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("accounts_test"),
			postgres.WithUsername("accounts"),
			postgres.WithPassword("accounts"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.Open(ctx, store.PoolOptions{URL: connStr, MaxConns: 4, StartupRetries: 3})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	columns := func() []string {
		rows, err := pool.Query(ctx, `
			SELECT column_name FROM information_schema.columns
			WHERE table_name = 'users' ORDER BY column_name`)
		Expect(err).NotTo(HaveOccurred())
		defer rows.Close()
		var names []string
		for rows.Next() {
			var name string
			Expect(rows.Scan(&name)).To(Succeed())
			names = append(names, name)
		}
		Expect(rows.Err()).NotTo(HaveOccurred())
		return names
	}

	It("tolerates profile columns that already exist", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer migrator.Close()

		Expect(migrator.Steps(1)).To(Succeed())
		_, err = pool.Exec(ctx, `ALTER TABLE users ADD COLUMN country TEXT NOT NULL DEFAULT ''`)
		Expect(err).NotTo(HaveOccurred())

		Expect(migrator.Up()).To(Succeed())
		Expect(columns()).To(ContainElements("company_email", "job_title", "company_website", "country", "state"))

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Name).To(Equal("000002_profile_columns"))
		Expect(st.Pending).To(BeEmpty())
	})

	It("rejects emails that are not normalized", func() {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, email, name, password_hash)
			VALUES ('01HZZZZZZZZZZZZZZZZZZZZZZZ', ' Mixed@Example.com', 'M', 'x')`)
		Expect(err).To(HaveOccurred())
	})

	It("keeps reset token and expiry together", func() {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, email, name, password_hash, reset_token)
			VALUES ('01HYYYYYYYYYYYYYYYYYYYYYYY', 'half@example.com', 'H', 'x', 'digest')`)
		Expect(err).To(HaveOccurred())
	})
})
