package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/pkg/utils"
)

func touch(path, content string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
}

var _ = Describe("FileManager", func() {
	var (
		root string
		fm   *utils.FileManager
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		fm = utils.NewFileManager(
			filepath.Join(root, "in"),
			filepath.Join(root, "out"),
			filepath.Join(root, "in_archive"),
			filepath.Join(root, "out_archive"),
		)
		Expect(fm.EnsureDirectories()).To(Succeed())
	})

	Describe("DiscoverInputFiles", func() {
		It("lists manifests in name order and skips everything else", func() {
			touch(filepath.Join(fm.InputDir, "usbank_0304.xlsx"), "")
			touch(filepath.Join(fm.InputDir, "commerce_0304.csv"), "")
			touch(filepath.Join(fm.InputDir, "notes.md"), "")
			touch(filepath.Join(fm.InputDir, ".commerce_0305.csv"), "")
			touch(filepath.Join(fm.InputDir, "~$usbank_0304.xlsx"), "")
			Expect(os.MkdirAll(filepath.Join(fm.InputDir, "nested.csv"), 0755)).To(Succeed())

			files, err := fm.DiscoverInputFiles("")
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(Equal([]string{
				filepath.Join(fm.InputDir, "commerce_0304.csv"),
				filepath.Join(fm.InputDir, "usbank_0304.xlsx"),
			}))
		})

		It("applies a pattern", func() {
			touch(filepath.Join(fm.InputDir, "commerce_0304.csv"), "")
			touch(filepath.Join(fm.InputDir, "usbank_0304.csv"), "")

			files, err := fm.DiscoverInputFiles("usbank_*")
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(HaveLen(1))
		})
	})

	Describe("archival", func() {
		It("moves manifests and copies exports", func() {
			manifest := filepath.Join(fm.InputDir, "commerce_0304.csv")
			export := filepath.Join(fm.OutputDir, "commerce_20260304_A.x937")
			touch(manifest, "rows")
			touch(export, "records")

			archived, err := fm.ArchiveInputFile(manifest)
			Expect(err).NotTo(HaveOccurred())
			Expect(archived).To(Equal(filepath.Join(fm.InputArchiveDir, "commerce_0304.csv")))
			Expect(utils.FileExists(manifest)).To(BeFalse())

			copied, err := fm.ArchiveOutputFile(export)
			Expect(err).NotTo(HaveOccurred())
			Expect(utils.FileExists(export)).To(BeTrue())
			Expect(os.ReadFile(copied)).To(Equal([]byte("records")))
		})

		It("files archives by date when asked", func() {
			fm.UseTimestampSubdirs = true
			export := filepath.Join(fm.OutputDir, "a.x937")
			touch(export, "x")

			copied, err := fm.ArchiveOutputFile(export)
			Expect(err).NotTo(HaveOccurred())
			Expect(copied).To(Equal(filepath.Join(fm.OutputArchiveDir, time.Now().Format("2006/01/02"), "a.x937")))
		})

		It("leaves files alone when archival is off", func() {
			fm.ArchiveOnSuccess = false
			manifest := filepath.Join(fm.InputDir, "commerce_0304.csv")
			touch(manifest, "rows")

			path, err := fm.ArchiveInputFile(manifest)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(manifest))
			Expect(utils.FileExists(manifest)).To(BeTrue())
		})
	})

	It("removes archives past their retention", func() {
		old := filepath.Join(fm.OutputArchiveDir, "2025", "old.x937")
		fresh := filepath.Join(fm.OutputArchiveDir, "fresh.x937")
		touch(old, "x")
		touch(fresh, "x")
		stale := time.Now().AddDate(0, 0, -40)
		Expect(os.Chtimes(old, stale, stale)).To(Succeed())

		removed, err := utils.CleanOldArchives(fm.OutputArchiveDir, 30*24*time.Hour)
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(Equal(1))
		Expect(utils.FileExists(fresh)).To(BeTrue())
	})
})

var _ = Describe("GenerateOutputFileName", func() {
	at := time.Date(2026, 3, 4, 10, 30, 5, 0, time.UTC)

	It("fills placeholders and adds the extension", func() {
		name := utils.GenerateOutputFileName("{profile}_{date}_{modifier}", at,
			map[string]string{"profile": "commerce", "modifier": "B"}, ".x937")
		Expect(name).To(Equal("commerce_20260304_B.x937"))
	})

	It("keeps an extension that is already there", func() {
		name := utils.GenerateOutputFileName("{dialect}_{timestamp}.X937", at,
			map[string]string{"dialect": "USBank"}, ".x937")
		Expect(name).To(Equal("USBank_20260304_103005.X937"))
	})

	It("uses a supplied run ID for {uuid}", func() {
		name := utils.GenerateOutputFileName("{uuid}", at, map[string]string{"uuid": "run-7"}, ".x937")
		Expect(name).To(Equal("run-7.x937"))
	})

	It("generates a UUID otherwise", func() {
		name := utils.GenerateOutputFileName("{uuid}", at, nil, "")
		Expect(name).To(MatchRegexp(`^[0-9a-f]{8}-[0-9a-f]{4}-`))
	})
})

var _ = Describe("WriteOutputFile", func() {
	It("never replaces an existing export", func() {
		path := filepath.Join(GinkgoT().TempDir(), "out", "a.x937")

		Expect(utils.WriteOutputFile(path, []byte("first"))).To(Succeed())
		err := utils.WriteOutputFile(path, []byte("second"))
		Expect(err).To(MatchError(utils.ErrOutputExists))
		Expect(os.ReadFile(path)).To(Equal([]byte("first")))

		entries, err := os.ReadDir(filepath.Dir(path))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})
})

var _ = Describe("logs", func() {
	It("writes an error log named after the manifest", func() {
		dir := GinkgoT().TempDir()
		path, err := utils.WriteErrorLog([]utils.ErrorLogEntry{{
			Timestamp:     time.Now(),
			FileName:      "commerce_0304.csv",
			ErrorType:     "validation",
			ErrorMessage:  "Transaction must have two images",
			TransactionID: "1002",
			BatchID:       "B-0304",
		}}, dir, "/in/commerce_0304.csv")
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(path)).To(HavePrefix("commerce_0304_errors_"))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("Transaction ID: 1002"))
		Expect(string(data)).To(ContainSubstring("Batch ID:       B-0304"))
	})

	It("writes nothing without entries", func() {
		path, err := utils.WriteErrorLog(nil, GinkgoT().TempDir(), "x.csv")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(BeEmpty())
	})

	It("summarises a run", func() {
		start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
		path, err := utils.WriteSummaryLog(utils.ProcessingSummary{
			RunID:           "run-1",
			StartTime:       start,
			EndTime:         start.Add(2 * time.Second),
			TotalFiles:      2,
			SuccessfulFiles: 1,
			FailedFiles:     1,
			TotalAmount:     decimal.RequireFromString("135"),
			ProcessedFiles: []utils.ProcessedFileInfo{{
				InputFile: "commerce_0304.csv", OutputFile: "commerce_20260304_A.x937",
				Profile: "commerce", Dialect: "CommerceBank", Transactions: 2, Bundles: 1,
				TotalAmount: decimal.RequireFromString("135"),
			}},
			FailedFilesList: []utils.FailedFileInfo{{InputFile: "usbank_0304.csv", ErrorType: "manifest", ErrorMessage: "missing column"}},
		}, GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(path)).To(Equal("export_summary_20260304_100000.txt"))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		text := string(data)
		Expect(text).To(ContainSubstring("Total Amount:       135.00"))
		Expect(text).To(ContainSubstring("Profile:      commerce (CommerceBank)"))
		Expect(strings.Count(text, "Error: ")).To(Equal(1))
	})
})
