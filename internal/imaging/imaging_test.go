package imaging_test

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ginjaninja78/x9-cash-letter/internal/imaging"
)

var _ = Describe("RenderString", func() {
	fields := map[string]string{"Amount": "$1,234.50", "ItemCount": "3"}

	It("substitutes placeholders", func() {
		out, err := imaging.RenderString("Deposit {{ Amount }} for {{ItemCount}} items", fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Deposit $1,234.50 for 3 items"))
	})

	It("returns plain text unchanged", func() {
		out, err := imaging.RenderString("no fields here", fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("no fields here"))
	})

	DescribeTable("rejects malformed templates",
		func(input, message string) {
			_, err := imaging.RenderString(input, fields)
			Expect(err).To(MatchError(ContainSubstring(message)))
		},
		Entry("unclosed", "Total {{Amount", "unclosed"),
		Entry("empty", "Total {{  }}", "empty"),
		Entry("unknown", "Total {{Payee}}", `"Payee"`),
	)
})

var _ = Describe("BlankPage", func() {
	It("builds a little-endian Group 4 TIFF", func() {
		page := imaging.BlankPage(imaging.SlipWidth, imaging.SlipHeight, "hello")
		Expect(string(page[:2])).To(Equal("II"))
		Expect(binary.LittleEndian.Uint16(page[2:4])).To(Equal(uint16(42)))

		compression, err := imaging.Compression(page)
		Expect(err).NotTo(HaveOccurred())
		Expect(compression).To(Equal(imaging.CompressionGroup4))
		Expect(string(page)).To(ContainSubstring("hello\x00"))
	})

	It("encodes one bit per blank row plus the end of block", func() {
		small := imaging.BlankPage(8, 8, "")
		large := imaging.BlankPage(8, 800, "")
		// 8 rows + 24 EOFB bits fit in 4 bytes; 800 rows + 24 bits need 103.
		Expect(len(large) - len(small)).To(Equal(103 - 4))
	})
})

var _ = Describe("Compression", func() {
	It("reads big-endian files", func() {
		data := []byte{'M', 'M', 0, 42, 0, 0, 0, 8,
			0, 1, // one entry
			1, 3, 0, 3, 0, 0, 0, 1, 0, 1, 0, 0, // compression SHORT 1
			0, 0, 0, 0}
		compression, err := imaging.Compression(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(compression).To(Equal(1))
	})

	It("rejects data that is not TIFF", func() {
		_, err := imaging.Compression([]byte("\x89PNG\r\n\x1a\n...."))
		Expect(err).To(MatchError(imaging.ErrNotTIFF))
	})

	It("rejects an IFD offset past the end", func() {
		_, err := imaging.Compression([]byte{'I', 'I', 42, 0, 0xff, 0, 0, 0})
		Expect(err).To(MatchError(imaging.ErrNotTIFF))
	})
})

var _ = Describe("TIFFPipeline", func() {
	var (
		ctx      context.Context
		pipeline *imaging.TIFFPipeline
		dir      string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		pipeline = imaging.NewTIFFPipeline(dir, nil)
	})

	It("renders identical slips from the cache", func() {
		first, err := pipeline.Render(ctx, "Amount {{Amount}}", map[string]string{"Amount": "$5.00"})
		Expect(err).NotTo(HaveOccurred())
		second, err := pipeline.Render(ctx, "Amount {{Amount}}", map[string]string{"Amount": "$5.00"})
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
	})

	It("renders a blank page for an empty template", func() {
		page, err := pipeline.Render(ctx, "", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(imaging.Compression(page)).To(Equal(imaging.CompressionGroup4))
	})

	It("loads @ templates from the templates directory", func() {
		Expect(os.WriteFile(filepath.Join(dir, "slip.txt"), []byte("Items {{ItemCount}}"), 0o644)).To(Succeed())
		page, err := pipeline.Render(ctx, "@slip.txt", map[string]string{"ItemCount": "7"})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(page)).To(ContainSubstring("Items 7"))
	})

	It("fails on a missing template file", func() {
		_, err := pipeline.Render(ctx, "@missing.txt", nil)
		Expect(err).To(MatchError(ContainSubstring("failed to read template")))
	})

	It("passes Group 4 images through", func() {
		page := imaging.BlankPage(16, 16, "")
		out, err := pipeline.CompressTiffG4(ctx, page)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(page))
	})

	It("rejects images with other compression", func() {
		data := []byte{'I', 'I', 42, 0, 8, 0, 0, 0,
			1, 0,
			3, 1, 3, 0, 1, 0, 0, 0, 5, 0, 0, 0, // LZW
			0, 0, 0, 0}
		_, err := pipeline.CompressTiffG4(ctx, data)
		Expect(err).To(MatchError(imaging.ErrNotGroup4))
	})

	It("endorses by appending a page to the back image", func() {
		back := imaging.BlankPage(16, 16, "")
		out, err := pipeline.Endorse(ctx, back, "FOR DEPOSIT ONLY")
		Expect(err).NotTo(HaveOccurred())

		Expect(out[:166]).To(Equal(back[:166]))
		Expect(out[170:len(back)]).To(Equal(back[170:]))
		Expect(string(out)).To(ContainSubstring("FOR DEPOSIT ONLY"))
		Expect(imaging.Compression(out)).To(Equal(imaging.CompressionGroup4))

		next := binary.LittleEndian.Uint32(out[166:170])
		Expect(int(next)).To(Equal(len(back) + len(back)%2))
		Expect(binary.LittleEndian.Uint16(out[next : next+2])).To(Equal(uint16(13)))
	})

	It("refuses to endorse data that is not TIFF", func() {
		_, err := pipeline.Endorse(ctx, []byte("not an image"), "x")
		Expect(err).To(MatchError(imaging.ErrNotTIFF))
	})

	It("honours cancellation", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := pipeline.CompressTiffG4(cancelled, imaging.BlankPage(8, 8, ""))
		Expect(err).To(MatchError(context.Canceled))
	})
})
