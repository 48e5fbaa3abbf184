package xlsxparser_test

import (
	"bytes"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/x9-cash-letter/internal/config"
	"github.com/ginjaninja78/x9-cash-letter/internal/xlsxparser"
)

// workbook builds a workbook with one sheet per entry of sheets, rows
// starting at A1.
func workbook(names []string, sheets map[string][][]any) *excelize.File {
	f := excelize.NewFile()
	for i, name := range names {
		if i == 0 {
			Expect(f.SetSheetName("Sheet1", name)).To(Succeed())
		} else {
			_, err := f.NewSheet(name)
			Expect(err).NotTo(HaveOccurred())
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.SetSheetRow(name, cell, &row)).To(Succeed())
		}
	}
	return f
}

func buffer(f *excelize.File) *bytes.Buffer {
	buf, err := f.WriteToBuffer()
	Expect(err).NotTo(HaveOccurred())
	return buf
}

var _ = Describe("ParseReader", func() {
	deposit := [][]any{
		{"Store 12 deposit"},
		{"transaction_id", "amount", "", "micr"},
		{"1", "12.50", "", "T071000013T 1U"},
		{},
		{"2", "3.00"},
	}

	It("reads rows below the configured header row", func() {
		f := workbook([]string{"Deposit"}, map[string][][]any{"Deposit": deposit})

		tables, err := xlsxparser.ParseReader(buffer(f), config.XLSXSettings{HeaderRow: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(tables).To(HaveLen(1))

		t := tables[0]
		Expect(t.Headers).To(Equal([]string{"transaction_id", "amount", "Column_3", "micr"}))
		Expect(t.Rows).To(HaveLen(2))
		Expect(t.Rows[0].Number).To(Equal(3))
		Expect(t.Rows[0].Fields).To(HaveKeyWithValue("micr", "T071000013T 1U"))
		Expect(t.Rows[1].Number).To(Equal(5))
		Expect(t.Rows[1].Fields).To(HaveKeyWithValue("micr", ""))
	})

	It("selects a named sheet or every visible sheet", func() {
		sheets := map[string][][]any{
			"Morning":  {{"id"}, {"1"}},
			"_lookups": {{"code"}, {"x"}},
			"Evening":  {{"id"}, {"2"}, {"3"}},
		}
		names := []string{"Morning", "_lookups", "Evening"}

		tables, err := xlsxparser.ParseReader(buffer(workbook(names, sheets)), config.XLSXSettings{Sheet: "Evening", HeaderRow: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(tables).To(HaveLen(1))
		Expect(tables[0].Rows).To(HaveLen(2))

		tables, err = xlsxparser.ParseReader(buffer(workbook(names, sheets)), config.XLSXSettings{Sheet: xlsxparser.AllSheets, HeaderRow: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(tables).To(HaveLen(2))
		Expect(tables[0].Rows[0].Fields["id"]).To(Equal("1"))
		Expect(tables[1].Rows[1].Fields["id"]).To(Equal("3"))
	})

	It("reports a missing sheet and a missing header row", func() {
		f := workbook([]string{"Deposit"}, map[string][][]any{"Deposit": {{"id"}}})

		_, err := xlsxparser.ParseReader(buffer(f), config.XLSXSettings{Sheet: "Nope", HeaderRow: 1})
		Expect(err).To(MatchError(ContainSubstring("no sheet named 'Nope'")))

		_, err = xlsxparser.ParseReader(buffer(f), config.XLSXSettings{HeaderRow: 4})
		Expect(err).To(MatchError(ContainSubstring("no header at row 4")))
	})
})

var _ = Describe("Parse", func() {
	It("records the source file on every table", func() {
		path := filepath.Join(GinkgoT().TempDir(), "deposit.xlsx")
		f := workbook([]string{"A", "B"}, map[string][][]any{"A": {{"id"}, {"1"}}, "B": {{"id"}, {"2"}}})
		Expect(f.SaveAs(path)).To(Succeed())

		tables, err := xlsxparser.Parse(path, config.XLSXSettings{Sheet: xlsxparser.AllSheets, HeaderRow: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(tables).To(HaveLen(2))
		for _, t := range tables {
			Expect(t.SourceFile).To(Equal(path))
		}
	})

	It("rejects a file that is not a workbook", func() {
		_, err := xlsxparser.ParseReader(bytes.NewBufferString("id,amount\n"), config.XLSXSettings{HeaderRow: 1})
		Expect(err).To(MatchError(ContainSubstring("failed to open workbook")))
	})
})
