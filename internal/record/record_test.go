package record_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/record"
)

var when = time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC)

func fixedRecords() []record.Record {
	return []record.Record{
		&record.FileHeader{
			StandardLevel:                     3,
			FileTypeIndicator:                 "T",
			ImmediateDestinationRoutingNumber: "071000013",
			ImmediateOriginRoutingNumber:      "123456780",
			CreatedAt:                         when,
			ResendIndicator:                   "N",
			ImmediateDestinationName:          "FIRST NATIONAL",
			ImmediateOriginName:               "GRACE CHURCH",
			FileIDModifier:                    "A",
			CountryCode:                       "US",
		},
		&record.CashLetterHeader{
			CollectionTypeIndicator:     1,
			DestinationRoutingNumber:    "071000013",
			ECEInstitutionRoutingNumber: "123456780",
			BusinessDate:                when,
			CreationDate:                when,
			CreationTime:                when,
			RecordTypeIndicator:         "I",
			DocumentationTypeIndicator:  "G",
			ID:                          "00000001",
		},
		&record.BundleHeader{
			CollectionTypeIndicator:     1,
			DestinationRoutingNumber:    "071000013",
			ECEInstitutionRoutingNumber: "123456780",
			BusinessDate:                when,
			CreationDate:                when,
			ID:                          "1",
			SequenceNumber:              "1",
			ReturnLocationRoutingNumber: "071000013",
		},
		&record.CheckDetail{
			AuxiliaryOnUs:                    "1001",
			PayorBankRoutingNumber:           "07100001",
			PayorBankRoutingNumberCheckDigit: "3",
			OnUs:                             "123456/1001",
			ItemAmount:                       decimal.RequireFromString("125.50"),
			ECEInstitutionItemSequenceNumber: "000000000000042",
			DocumentationTypeIndicator:       "G",
			MICRValidIndicator:               "1",
			BOFDIndicator:                    "Y",
			AddendumCount:                    1,
		},
		&record.CheckDetailAddendum{
			RecordNumber:            1,
			BOFDRoutingNumber:       "123456780",
			BOFDBusinessDate:        when,
			BOFDItemSequenceNumber:  "000000000000042",
			TruncationIndicator:     "N",
			BOFDConversionIndicator: "2",
			BOFDCorrectionIndicator: "0",
		},
		&record.ImageViewDetail{
			ImageIndicator:            1,
			ImageCreatorRoutingNumber: "071000013",
			ImageCreatorDate:          when,
			DataSize:                  3,
		},
		&record.CreditDetail{
			PayorBankRoutingNumber:           "123456780",
			CreditAccountNumberOnUs:          "123456780/20",
			ItemAmount:                       decimal.RequireFromString("300"),
			ECEInstitutionItemSequenceNumber: "000000000000041",
			DocumentationTypeIndicator:       "G",
			DebitCreditIndicator:             "2",
		},
		&record.CreditReconciliation{
			RecordUsageIndicator:             5,
			PostingAccountRoutingNumber:      "123456780",
			PostingAccountBankOnUs:           "123456780/20",
			ItemAmount:                       decimal.RequireFromString("300"),
			ECEInstitutionItemSequenceNumber: "000000000000041",
			DocumentationTypeIndicator:       "G",
		},
		&record.BundleControl{
			ItemCount:            1,
			TotalAmount:          decimal.RequireFromString("125.50"),
			MICRValidTotalAmount: decimal.RequireFromString("125.50"),
			ImageCount:           2,
		},
		&record.CashLetterControl{
			BundleCount:        1,
			ItemCount:          1,
			TotalAmount:        decimal.RequireFromString("125.50"),
			ImageCount:         2,
			ECEInstitutionName: "GRACE CHURCH",
			SettlementDate:     when,
		},
		&record.FileControl{
			CashLetterCount:  1,
			TotalRecordCount: 9,
			TotalItemCount:   1,
			TotalAmount:      decimal.RequireFromString("125.50"),
		},
	}
}

var _ = Describe("Encode", func() {
	It("produces 80 bytes for every fixed layout in both charsets", func() {
		for _, cs := range []record.Charset{record.ASCII, record.EBCDIC} {
			for _, r := range fixedRecords() {
				body, err := record.Encode(r, cs)
				Expect(err).NotTo(HaveOccurred(), "record %s", r.RecordType())
				Expect(body).To(HaveLen(record.FixedLength), "record %s", r.RecordType())
			}
		}
	})

	It("zero pads numerics, blank pads text and writes amounts in cents", func() {
		body, err := record.Encode(&record.BundleControl{
			ItemCount:   7,
			TotalAmount: decimal.RequireFromString("1234.5"),
		}, record.ASCII)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body[:2])).To(Equal("70"))
		Expect(string(body[2:6])).To(Equal("0007"))
		Expect(string(body[6:18])).To(Equal("000000123450"))
		Expect(string(body[18:30])).To(Equal("000000000000"))
	})

	It("right justifies On-Us fields", func() {
		body, err := record.Encode(fixedRecords()[3], record.ASCII)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body[2:17])).To(Equal("           1001"))
		Expect(string(body[27:47])).To(Equal("         123456/1001"))
	})

	It("truncates over-long text fields", func() {
		header := fixedRecords()[0].(*record.FileHeader)
		header.ImmediateOriginName = "A VERY LONG ORIGIN NAME THAT DOES NOT FIT"
		body, err := record.Encode(header, record.ASCII)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(HaveLen(record.FixedLength))
		Expect(string(body[54:72])).To(Equal("A VERY LONG ORIGIN"))
	})

	It("writes EBCDIC digits for the record type", func() {
		body, err := record.Encode(fixedRecords()[0], record.EBCDIC)
		Expect(err).NotTo(HaveOccurred())
		Expect(body[:2]).To(Equal([]byte{0xF0, 0xF1}))
	})

	Describe("rejections", func() {
		It("rejects a routing number wider than its field", func() {
			detail := fixedRecords()[3].(*record.CheckDetail)
			detail.PayorBankRoutingNumber = "071000013"

			_, err := record.Encode(detail, record.ASCII)
			var fe *record.FormatError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.Record).To(Equal(record.CheckDetailType))
			Expect(fe.Field).To(Equal("PayorBankRoutingNumber"))
			Expect(fe.Width).To(Equal(8))
		})

		It("rejects non-digit numeric text", func() {
			header := fixedRecords()[0].(*record.FileHeader)
			header.ImmediateOriginRoutingNumber = "12345678X"
			_, err := record.Encode(header, record.ASCII)
			Expect(err).To(BeAssignableToTypeOf(&record.FormatError{}))
		})

		It("rejects an unset required routing number", func() {
			header := fixedRecords()[1].(*record.CashLetterHeader)
			header.DestinationRoutingNumber = ""
			_, err := record.Encode(header, record.ASCII)
			Expect(err).To(MatchError(ContainSubstring("required field is unset")))
		})

		It("rejects amounts finer than a cent", func() {
			detail := fixedRecords()[3].(*record.CheckDetail)
			detail.ItemAmount = decimal.RequireFromString("1.005")
			_, err := record.Encode(detail, record.ASCII)
			Expect(err).To(MatchError(ContainSubstring("whole cents")))
		})

		It("rejects amounts that overflow the field", func() {
			control := fixedRecords()[8].(*record.BundleControl)
			control.TotalAmount = decimal.RequireFromString("10000000000")
			_, err := record.Encode(control, record.ASCII)
			Expect(err).To(MatchError(ContainSubstring("exceeds field width")))
		})

	})

	Describe("accented text", func() {
		It("strips accents from names instead of failing the export", func() {
			header := fixedRecords()[0].(*record.FileHeader)
			header.ImmediateOriginName = "CAFÉ JOSÉ"
			body, err := record.Encode(header, record.ASCII)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(HaveLen(record.FixedLength))
			Expect(string(body[54:72])).To(Equal("CAFE JOSE         "))

			_, err = record.Encode(header, record.EBCDIC)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("folds text to printable ASCII",
			func(in, want string) {
				Expect(record.Fold(in)).To(Equal(want))
			},
			Entry("plain", "FIRST CHURCH", "FIRST CHURCH"),
			Entry("accents", "Zoë Müller", "Zoe Muller"),
			Entry("control characters", "A\tB", "A B"),
			Entry("no ASCII form", "ΩMEGA €", "?MEGA ?"),
		)
	})

	Describe("ImageViewData", func() {
		It("derives the image length field from the blob", func() {
			image := []byte("II*\x00payload")
			data := &record.ImageViewData{
				ECEInstitutionRoutingNumber:      "123456780",
				BundleBusinessDate:               when,
				ECEInstitutionItemSequenceNumber: "000000000000042",
				ImageData:                        image,
			}

			body, err := record.Encode(data, record.ASCII)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(HaveLen(record.ImageViewDataFixedLength + len(image)))
			Expect(string(body[110:117])).To(Equal("0000011"))
			Expect(body[117:]).To(Equal(image))
		})
	})
})

var _ = Describe("Writer", func() {
	It("prefixes every record with its big-endian length", func() {
		var buf bytes.Buffer
		w := record.NewWriter(&buf, record.ASCII)
		Expect(w.WriteRecord(fixedRecords()[0])).To(Succeed())
		Expect(w.Count()).To(Equal(1))

		out := buf.Bytes()
		Expect(binary.BigEndian.Uint32(out[:4])).To(Equal(uint32(record.FixedLength)))
		Expect(out).To(HaveLen(4 + record.FixedLength))
	})

	It("returns no bytes when any record fails", func() {
		records := fixedRecords()
		records[3].(*record.CheckDetail).PayorBankRoutingNumber = ""

		out, err := record.EncodeAll(records, record.ASCII)
		Expect(err).To(HaveOccurred())
		Expect(out).To(BeNil())
	})
})

var _ = Describe("CheckNesting", func() {
	header := func(t record.Type) record.Record {
		switch t {
		case record.FileHeaderType:
			return &record.FileHeader{}
		case record.CashLetterHeaderType:
			return &record.CashLetterHeader{}
		case record.BundleHeaderType:
			return &record.BundleHeader{}
		case record.BundleControlType:
			return &record.BundleControl{}
		case record.CashLetterControlType:
			return &record.CashLetterControl{}
		}
		return &record.FileControl{}
	}

	It("accepts symmetric bracketing", func() {
		stream := []record.Record{
			header(record.FileHeaderType), header(record.CashLetterHeaderType),
			header(record.BundleHeaderType), &record.CheckDetail{}, header(record.BundleControlType),
			header(record.BundleHeaderType), header(record.BundleControlType),
			header(record.CashLetterControlType), header(record.FileControlType),
		}
		Expect(record.CheckNesting(stream)).To(Succeed())
		Expect(record.CountTypes(stream, record.BundleHeaderType)).To(Equal(2))
	})

	It("rejects a bundle closed outside its cash letter", func() {
		stream := []record.Record{
			header(record.FileHeaderType), header(record.CashLetterHeaderType),
			header(record.BundleHeaderType), header(record.CashLetterControlType),
			header(record.BundleControlType), header(record.FileControlType),
		}
		Expect(record.CheckNesting(stream)).NotTo(Succeed())
	})

	It("rejects an unclosed header", func() {
		stream := []record.Record{header(record.FileHeaderType), header(record.CashLetterHeaderType)}
		Expect(record.CheckNesting(stream)).To(MatchError(ContainSubstring("never closed")))
	})
})
