package database_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/database"
)

var _ = Describe("Open", func() {
	It("creates the schema in a new file and is idempotent", func() {
		ctx := context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "data", "x9.db")

		db, err := database.Open(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(db.Close()).To(Succeed())

		db, err = database.Open(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		var n int
		Expect(db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('sequence_counters','export_history')").
			Scan(&n)).To(Succeed())
		Expect(n).To(Equal(2))
	})
})

var _ = Describe("ExportLog", func() {
	It("stamps batches with their export file", func() {
		ctx := context.Background()
		db, err := database.Open(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		log := database.NewExportLog(db)
		exported := time.Date(2024, time.March, 5, 16, 0, 0, 0, time.UTC)
		Expect(log.Record(ctx,
			database.ExportEntry{
				RunID: "run-1", BatchID: "B1", Dialect: "X937", FileName: "a.x937",
				ItemCount: 3, TotalAmount: decimal.RequireFromString("10.5"),
				BusinessDate: exported, ExportedAt: exported,
			},
			database.ExportEntry{
				RunID: "run-1", BatchID: "B2", Dialect: "X937", FileName: "a.x937",
				ItemCount: 1, TotalAmount: decimal.RequireFromString("2"),
				BusinessDate: exported, ExportedAt: exported,
			},
		)).To(Succeed())

		entries, err := log.ForBatch(ctx, "B1")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].FileName).To(Equal("a.x937"))
		Expect(entries[0].TotalAmount.Equal(decimal.RequireFromString("10.50"))).To(BeTrue())
		Expect(entries[0].BusinessDate.Format("20060102")).To(Equal("20240305"))
	})
})
