package manifest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/x9-cash-letter/internal/config"
	"github.com/ginjaninja78/x9-cash-letter/internal/imaging"
	"github.com/ginjaninja78/x9-cash-letter/internal/manifest"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
)

const profileYAML = `
code: store
dialect: X937
columns:
  amount: Check Amount
column_transforms:
  - field: Check Amount
    actions:
      - type: format_amount
  - field: currency_type
    actions:
      - type: lookup
        lookup_table:
          CHK: check
          CSH: cash
`

var _ = Describe("Loader", func() {
	var (
		dir    string
		loader *manifest.Loader
		scan   []byte
	)

	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, data, 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		profile, err := config.LoadProfile(write("profiles/store.yaml", []byte(profileYAML)))
		Expect(err).NotTo(HaveOccurred())

		loader, err = manifest.NewLoader(profile, nil)
		Expect(err).NotTo(HaveOccurred())

		scan = imaging.BlankPage(32, 16, "")
		write("images/1_f.tif", scan)
		write("images/1_b.tif", scan)
		write("images/2_f.tif", scan)
		write("images/2_b.tif", scan)
	})

	It("groups CSV rows into batches in order of first appearance", func() {
		path := write("store_0304.csv", []byte(
			"transaction_id,batch_id,Check Amount,processed_at,currency_type,micr,front_image,back_image\n"+
				"1,B2,\"$1,250.00\",2026-03-04 09:00:00,CHK,T071000013T 1U,images/1_f.tif,images/1_b.tif\n"+
				"2,B1,7.5,03/04/2026 10:15:00,,enc:abc,images/2_f.tif,images/2_b.tif\n"+
				"3,B2,1.00,,CSH,T071000013T 3U,,\n"))

		m, err := loader.Load(context.Background(), path)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Rows).To(Equal(3))
		Expect(m.Transactions()).To(Equal(3))
		Expect(m.Batches).To(HaveLen(2))
		Expect(m.Batches[0].ID).To(Equal("B2"))
		Expect(m.Batches[1].ID).To(Equal("B1"))

		first := m.Batches[0].Transactions[0]
		Expect(first.ID).To(Equal("1"))
		Expect(first.BatchID).To(Equal("B2"))
		Expect(first.Amount.Equal(decimal.RequireFromString("1250"))).To(BeTrue())
		Expect(first.CurrencyType).To(Equal("check"))
		Expect(first.MICREncrypted).To(Equal("T071000013T 1U"))
		Expect(first.ProcessedAt).To(Equal(time.Date(2026, time.March, 4, 9, 0, 0, 0, time.Local)))
		Expect(first.Images).To(HaveLen(2))
		Expect(first.Images[1].Side).To(Equal(types.Back))
		Expect(first.Images[1].Data).To(Equal(scan))

		second := m.Batches[1].Transactions[0]
		Expect(second.MICREncrypted).To(Equal("enc:abc"))
		Expect(second.CurrencyType).To(Equal(manifest.DefaultCurrencyType))
		Expect(second.ProcessedAt.Hour()).To(Equal(10))

		third := m.Batches[0].Transactions[1]
		Expect(third.CurrencyType).To(Equal("cash"))
		Expect(third.Images).To(BeEmpty())
		Expect(third.ProcessedAt.IsZero()).To(BeTrue())
	})

	It("names the batch after the manifest when there is no batch column", func() {
		path := write("store_am.csv", []byte(
			"transaction_id,Check Amount,micr,front_image,back_image\n"+
				"1,1.00,T071000013T 1U,images/1_f.tif,images/1_b.tif\n"))

		m, err := loader.Load(context.Background(), path)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Batches).To(HaveLen(1))
		Expect(m.Batches[0].ID).To(Equal("store_am"))
	})

	It("reads workbooks", func() {
		f := excelize.NewFile()
		rows := [][]any{
			{"transaction_id", "batch_id", "batch_name", "Check Amount", "micr", "front_image", "back_image", "image_date"},
			{"9", "B9", "Lockbox 9", "20", "T071000013T 9U", filepath.Join(dir, "images/1_f.tif"), "images/1_b.tif", "2026-03-03"},
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.SetSheetRow("Sheet1", cell, &row)).To(Succeed())
		}
		path := filepath.Join(dir, "store_0304.xlsx")
		Expect(f.SaveAs(path)).To(Succeed())

		m, err := loader.Load(context.Background(), path)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Batches).To(HaveLen(1))
		Expect(m.Batches[0].Name).To(Equal("Lockbox 9"))

		tx := m.Batches[0].Transactions[0]
		Expect(tx.Images).To(HaveLen(2))
		Expect(*tx.Images[0].CreatedAt).To(Equal(time.Date(2026, time.March, 3, 0, 0, 0, 0, time.Local)))
	})

	It("names missing required columns", func() {
		path := write("store_bad.csv", []byte("transaction_id,micr\n1,x\n"))

		_, err := loader.Load(context.Background(), path)
		Expect(err).To(MatchError(ContainSubstring("missing required column(s): Check Amount, front_image, back_image")))
	})

	It("reports the row and column of a bad value", func() {
		path := write("store_bad.csv", []byte(
			"transaction_id,Check Amount,processed_at,micr,front_image,back_image\n"+
				"1,1.00,yesterday,m,,\n"))

		_, err := loader.Load(context.Background(), path)
		var rowErr *manifest.RowError
		Expect(errors.As(err, &rowErr)).To(BeTrue())
		Expect(rowErr.Row).To(Equal(2))
		Expect(rowErr.Column).To(Equal("processed_at"))
		Expect(err.Error()).To(Equal(`store_bad.csv row 2, column 'processed_at': unrecognised date/time "yesterday"`))
	})

	It("reports an unreadable image", func() {
		path := write("store_bad.csv", []byte(
			"transaction_id,Check Amount,micr,front_image,back_image\n"+
				"1,1.00,m,images/none.tif,images/1_b.tif\n"))

		_, err := loader.Load(context.Background(), path)
		Expect(err).To(MatchError(ContainSubstring("column 'front_image': failed to read image")))
		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})

	It("reports transform failures against the row", func() {
		path := write("store_bad.csv", []byte(
			"transaction_id,Check Amount,micr,front_image,back_image\n"+
				"1,lots,m,,\n"))

		_, err := loader.Load(context.Background(), path)
		Expect(err).To(MatchError(ContainSubstring("store_bad.csv row 2: field 'Check Amount'")))
	})

	It("stops when the context is cancelled", func() {
		path := write("store_0304.csv", []byte(
			"transaction_id,Check Amount,micr,front_image,back_image\n1,1.00,m,,\n"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := loader.Load(ctx, path)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("rejects invalid column transforms", func() {
		_, err := manifest.NewLoader(&config.Profile{
			Code: "x",
			ColumnTransforms: []config.TransformationRule{{
				Field: "amount", Actions: []config.TransformationAction{{Type: "nope"}},
			}},
		}, nil)
		Expect(err).To(MatchError(ContainSubstring(`invalid column transforms in profile "x"`)))
	})
})
