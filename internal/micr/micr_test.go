package micr_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ginjaninja78/x9-cash-letter/internal/micr"
)

var _ = Describe("Parse", func() {
	It("reads a personal check", func() {
		line, err := micr.Parse("T071000013T 123456789U 1001")
		Expect(err).NotTo(HaveOccurred())
		Expect(line.RoutingNumber()).To(Equal("071000013"))
		Expect(line.AccountNumber()).To(Equal("123456789"))
		Expect(line.CheckNumber()).To(Equal("1001"))
		Expect(line.AuxOnUs()).To(BeEmpty())
		Expect(line.ExternalProcessingCode()).To(BeEmpty())

		prefix, digit := line.PayorBankRouting()
		Expect(prefix).To(Equal("07100001"))
		Expect(digit).To(Equal("3"))
	})

	It("takes the check number from the auxiliary on-us field on business checks", func() {
		line, err := micr.Parse("U004567U T071000013T 987654321U")
		Expect(err).NotTo(HaveOccurred())
		Expect(line.AuxOnUs()).To(Equal("004567"))
		Expect(line.AccountNumber()).To(Equal("987654321"))
		Expect(line.CheckNumber()).To(Equal("004567"))
		Expect(line.OnUs()).To(Equal("987654321/4567"))
		Expect(line.RawOnUs()).To(Equal("987654321/004567"))
	})

	It("accepts the lowercase scanner symbols and an encoded amount", func() {
		line, err := micr.Parse("d071000013d123456789c1001b0000012550b")
		Expect(err).NotTo(HaveOccurred())
		Expect(line.RoutingNumber()).To(Equal("071000013"))
		Expect(line.AccountNumber()).To(Equal("123456789"))
		Expect(line.CheckNumber()).To(Equal("1001"))
		Expect(line.Amount()).To(Equal("0000012550"))
	})

	It("accepts the OCR glyphs", func() {
		line, err := micr.Parse("⑈004567⑈ ⑆071000013⑆ 987654321⑈")
		Expect(err).NotTo(HaveOccurred())
		Expect(line.RoutingNumber()).To(Equal("071000013"))
		Expect(line.CheckNumber()).To(Equal("004567"))
	})

	It("reads the external processing code next to the transit field", func() {
		line, err := micr.Parse("U004567U5T071000013T987654321U")
		Expect(err).NotTo(HaveOccurred())
		Expect(line.ExternalProcessingCode()).To(Equal("5"))
		Expect(line.AuxOnUs()).To(Equal("004567"))
	})

	DescribeTable("rejects unusable lines",
		func(raw string) {
			_, err := micr.Parse(raw)
			var de *micr.DataError
			Expect(errors.As(err, &de)).To(BeTrue())
			Expect(err.Error()).NotTo(ContainSubstring("123456789"))
		},
		Entry("empty", ""),
		Entry("blank", "   "),
		Entry("no transit field", "U1234U 123456789U"),
		Entry("short routing number", "T07100001T 123456789U1001"),
	)
})

var _ = Describe("ComposeOnUs", func() {
	It("strips leading zeros from both parts", func() {
		Expect(micr.ComposeOnUs("0001234567890123456", "00042")).To(Equal("1234567890123456/42"))
	})

	It("drops leading account digits to keep the whole check number", func() {
		Expect(micr.ComposeOnUs("1234567890", "123456789012")).To(Equal("4567890/123456789012"))
	})

	It("keeps a short check number whole under a long account number", func() {
		onUs := micr.ComposeOnUs("123456789012345678", "00012345")
		Expect(onUs).To(HaveLen(micr.MaxOnUsLength))
		Expect(onUs).To(Equal("56789012345678/12345"))
	})

	It("keeps the rightmost digits of a check number too long on its own", func() {
		Expect(micr.ComposeOnUs("42", "1234567890123456789012")).To(Equal("2/567890123456789012"))
	})
})

var _ = Describe("DataError", func() {
	It("names the transaction and unwraps its cause", func() {
		cause := errors.New("bad key")
		err := &micr.DataError{TransactionID: "TX-9", Reason: "MICR line could not be decrypted", Err: cause}
		Expect(err.Error()).To(ContainSubstring("transaction TX-9"))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})
})
