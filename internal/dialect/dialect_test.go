package dialect_test

import (
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/dialect"
	"github.com/ginjaninja78/x9-cash-letter/internal/record"
)

type prefixDecrypter struct{}

func (prefixDecrypter) Decrypt(v string) (string, error) {
	if strings.HasPrefix(v, "bad:") {
		return "", errors.New("cannot open")
	}
	return strings.TrimPrefix(v, "sealed:"), nil
}

func mustResolve(attrs dialect.Attributes) *dialect.Configuration {
	cfg, err := dialect.Resolve(attrs, prefixDecrypter{})
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

var _ = Describe("Attributes", func() {
	It("prefers the primary key and falls back to the legacy one", func() {
		attrs := dialect.Attributes{"RoutingNumber": "071000013", "DestinationRoutingNumber": "  "}
		Expect(attrs.ValueWithFallback("DestinationRoutingNumber", "RoutingNumber")).To(Equal("071000013"))

		attrs["DestinationRoutingNumber"] = "111000025"
		Expect(attrs.ValueWithFallback("DestinationRoutingNumber", "RoutingNumber")).To(Equal("111000025"))
	})

	It("parses booleans and lists", func() {
		attrs := dialect.Attributes{"A": "yes", "B": "False", "C": "junk", "L": "Check, Money Order,,"}
		Expect(attrs.Bool("A", false)).To(BeTrue())
		Expect(attrs.Bool("B", true)).To(BeFalse())
		Expect(attrs.Bool("C", true)).To(BeTrue())
		Expect(attrs.Bool("missing", true)).To(BeTrue())
		Expect(attrs.List("L")).To(Equal([]string{"check", "money order"}))
	})
})

var _ = Describe("Resolve", func() {
	It("applies defaults", func() {
		cfg := mustResolve(dialect.Attributes{})
		Expect(cfg.TestMode).To(BeTrue())
		Expect(cfg.FileTypeIndicator()).To(Equal("T"))
		Expect(cfg.TruncationIndicator).To(Equal("N"))
		Expect(cfg.CreditDepositCheckNumber).To(Equal("20"))
		Expect(cfg.CurrencyTypes).To(Equal([]string{"check"}))
		Expect(cfg.MaxItemsPerBundle).To(Equal(dialect.DefaultMaxItemsPerBundle))
		Expect(cfg.CreditRecordType).To(Equal(dialect.CreditNone))
		Expect(cfg.Charset).To(Equal(record.EBCDIC))
	})

	It("resolves routing numbers through the legacy keys", func() {
		cfg := mustResolve(dialect.Attributes{
			"RoutingNumber": "sealed:071000013",
			"AccountNumber": "sealed:123456780",
			"OriginName":    "GRACE CHURCH",
		})
		Expect(cfg.DestinationRoutingNumber).To(Equal("071000013"))
		Expect(cfg.OriginRoutingNumber).To(Equal("123456780"))
		Expect(cfg.InstitutionRoutingNumber).To(Equal("071000013"))
		Expect(cfg.CashLetterInstitutionRoutingNumber).To(Equal("123456780"))
		Expect(cfg.InstitutionName).To(Equal("GRACE CHURCH"))
		Expect(cfg.BOFD()).To(Equal("071000013"))
	})

	It("falls back from institution to origin for images and to destination for bundles", func() {
		cfg := mustResolve(dialect.Attributes{
			"DestinationRoutingNumber": "071000013",
			"OriginRoutingNumber":      "123456780",
		})
		Expect(cfg.InstitutionRoutingNumber).To(BeEmpty())
		Expect(cfg.ImageInstitutionRoutingNumber()).To(Equal("123456780"))
		Expect(cfg.BundleInstitutionRoutingNumber()).To(Equal("071000013"))
		Expect(cfg.BOFD()).To(Equal("123456780"))
	})

	It("normalises indicators and phone numbers", func() {
		cfg := mustResolve(dialect.Attributes{
			"TruncationIndicator":             "yes",
			"OriginContactPhone":              "555 123 4567",
			"ItemSequenceNumberJustification": "Left",
			"CreditRecordType":                "Type61A",
			"CurrencyTypes":                   "Check,ACH",
			"TestMode":                        "false",
			"Encoding":                        "ascii",
		})
		Expect(cfg.TruncationIndicator).To(Equal("Y"))
		Expect(cfg.OriginContactPhone).To(Equal("5551234567"))
		Expect(cfg.Justification).To(Equal(dialect.JustifyLeft))
		Expect(cfg.CreditRecordType).To(Equal(dialect.Credit61A))
		Expect(cfg.AllowsCurrency(" ACH ")).To(BeTrue())
		Expect(cfg.AllowsCurrency("cash")).To(BeFalse())
		Expect(cfg.FileTypeIndicator()).To(Equal("P"))
		Expect(cfg.Charset).To(Equal(record.ASCII))
	})

	DescribeTable("rejects invalid profiles",
		func(attrs dialect.Attributes, reason string) {
			_, err := dialect.Resolve(attrs, prefixDecrypter{})
			Expect(err).To(MatchError(ContainSubstring(reason)))
		},
		Entry("credit type", dialect.Attributes{"CreditRecordType": "Type62"}, "unknown credit record type"),
		Entry("bundle size", dialect.Attributes{"MaxItemsPerBundle": "0"}, "must be positive"),
		Entry("bundle size text", dialect.Attributes{"MaxItemsPerBundle": "many"}, "MaxItemsPerBundle"),
		Entry("sealed value", dialect.Attributes{"RoutingNumber": "bad:xx"}, "failed to open attribute RoutingNumber"),
	)
})

var _ = Describe("FormatSequence", func() {
	It("zero fills right justified numbers and blank fills left justified ones", func() {
		Expect(dialect.FormatSequence(42, dialect.JustifyRight)).To(Equal("000000000000042"))
		Expect(dialect.FormatSequence(42, dialect.JustifyLeft)).To(Equal("42             "))
	})
})

var _ = Describe("CycleNumber", func() {
	It("numbers Sunday seven", func() {
		sunday := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)
		Expect(dialect.CycleNumber(sunday)).To(Equal("7"))
		Expect(dialect.CycleNumber(sunday.AddDate(0, 0, 1))).To(Equal("1"))
	})
})

var _ = Describe("Dialect", func() {
	It("applies typed overrides only to their record type", func() {
		calls := 0
		d := &dialect.Dialect{Overrides: []dialect.Override{
			dialect.On(func(h *record.FileHeader, _ *dialect.Scope) {
				calls++
				h.UserField = "X"
			}),
		}}

		header := &record.FileHeader{}
		d.Apply(header, &dialect.Scope{})
		d.Apply(&record.FileControl{}, &dialect.Scope{})
		Expect(calls).To(Equal(1))
		Expect(header.UserField).To(Equal("X"))
	})

	It("extends without touching the base dialect", func() {
		base := dialect.X937()
		derived := base.Extend("Mine", "Mine", func(p *dialect.Policy) {
			p.FileItemTypes = []record.Type{record.CheckDetailType}
		}, dialect.On(func(h *record.FileHeader, _ *dialect.Scope) {}))

		Expect(base.Overrides).To(BeEmpty())
		Expect(base.Policy.FileItemTypes).To(HaveLen(2))
		Expect(derived.Overrides).To(HaveLen(1))
		Expect(derived.Policy.FileItemTypes).To(HaveLen(1))
		Expect(derived.Standard).To(Equal(dialect.X937DSTU))
	})

	Describe("built-ins", func() {
		var cfg *dialect.Configuration
		var scope *dialect.Scope

		BeforeEach(func() {
			cfg = mustResolve(dialect.Attributes{
				"DestinationRoutingNumber": "071000013",
				"OriginRoutingNumber":      "123456780",
				"InstitutionRoutingNumber": "111000025",
				"RoutingNumber":            "222000005",
				"OriginName":               "GRACE CHURCH",
				"InstitutionName":          "GRACE BANK",
				"ContactName":              "PAT",
				"ContactPhone":             "555 0100",
				"CommerceBankClientId":     "333000001",
				"CollectionTypeValue":      "3",
			})
			scope = &dialect.Scope{
				Config:      cfg,
				ExportedAt:  time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC),
				BundleIndex: 2,
				Sequence:    7,
			}
		})

		It("blanks the country and bundle ID for X9.100", func() {
			d := dialect.X9100()
			Expect(d.Standard).To(Equal(dialect.X9100187))

			header := &record.FileHeader{CountryCode: "US"}
			bundle := &record.BundleHeader{ID: "3"}
			control := &record.FileControl{}
			d.Apply(header, scope)
			d.Apply(bundle, scope)
			d.Apply(control, scope)

			Expect(header.CountryCode).To(BeEmpty())
			Expect(bundle.ID).To(BeEmpty())
			Expect(control.ImmediateOriginContactName).To(Equal("PAT"))
			Expect(control.ImmediateOriginContactPhoneNumber).To(Equal("5550100"))
			Expect(d.Policy.AllowCredits).To(BeFalse())
		})

		It("uses the institution routing number everywhere for Cass", func() {
			d := dialect.CassCommercialBank()
			Expect(d.CounterPrefix).To(Equal("CassCommercial"))
			Expect(d.Policy.IncludeAddendum).To(BeFalse())

			header := &record.FileHeader{ImmediateOriginRoutingNumber: "123456780"}
			data := &record.ImageViewData{ECEInstitutionRoutingNumber: "123456780"}
			control := &record.FileControl{ImmediateOriginContactName: "SOMEONE"}
			clControl := &record.CashLetterControl{ECEInstitutionName: "GRACE BANK", SettlementDate: scope.ExportedAt}
			d.Apply(header, scope)
			d.Apply(data, scope)
			d.Apply(control, scope)
			d.Apply(clControl, scope)

			Expect(header.ImmediateOriginRoutingNumber).To(Equal("111000025"))
			Expect(data.ECEInstitutionRoutingNumber).To(Equal("111000025"))
			Expect(control.ImmediateOriginContactName).To(BeEmpty())
			Expect(control.ImmediateOriginContactPhoneNumber).To(Equal("0"))
			Expect(clControl.ECEInstitutionName).To(Equal("GRACE CHURCH"))
			Expect(clControl.SettlementDate.IsZero()).To(BeTrue())
		})

		It("fills the Commerce Bank bundle header", func() {
			header := &record.BundleHeader{ID: "3", ReturnLocationRoutingNumber: "071000013"}
			dialect.CommerceBank().Apply(header, scope)

			Expect(header.CollectionTypeIndicator).To(Equal(3))
			Expect(header.DestinationRoutingNumber).To(Equal("222000005"))
			Expect(header.ECEInstitutionRoutingNumber).To(Equal("333000001"))
			Expect(header.ID).To(Equal("2"))
			Expect(header.SequenceNumber).To(Equal("3"))
			Expect(header.CycleNumber).To(Equal("7"))
			Expect(header.ReturnLocationRoutingNumber).To(BeEmpty())
		})

		// The bank's own filter (type 25 AND type 61) could never match, so
		// the deposit ticket was silently left out. Counting it is the
		// intended behaviour.
		It("counts the deposit ticket when CountDepositSlip is set", func() {
			scope.Records = []record.Record{
				&record.BundleHeader{}, &record.CreditDetail{},
				&record.CheckDetail{}, &record.CheckDetail{}, &record.BundleControl{},
			}
			d := dialect.CommerceBank()

			control := &record.BundleControl{ItemCount: 2, MICRValidTotalAmount: decimal.RequireFromString("5")}
			d.Apply(control, scope)
			Expect(control.ItemCount).To(Equal(2))
			Expect(control.MICRValidTotalAmount.IsZero()).To(BeTrue())

			cfg.CountDepositSlip = true
			d.Apply(control, scope)
			Expect(control.ItemCount).To(Equal(3))
		})

		It("forces right justified sequence numbers for Commerce Bank", func() {
			cfg.Justification = dialect.JustifyLeft
			detail := &record.CheckDetail{ECEInstitutionItemSequenceNumber: "7              "}
			dialect.CommerceBank().Apply(detail, scope)
			Expect(detail.ECEInstitutionItemSequenceNumber).To(Equal("000000000000007"))
			Expect(detail.BOFDIndicator).To(Equal("U"))
		})
	})
})

var _ = Describe("Registry", func() {
	It("finds built-ins without regard to case", func() {
		r := dialect.NewRegistry()
		d, err := r.Lookup("commercebank")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Name).To(Equal("CommerceBank"))
		Expect(r.Names()).To(ConsistOf("CassCommercialBank", "CommerceBank", "USBank", "X9100", "X937"))

		_, err = r.Lookup("nope")
		Expect(err).To(MatchError(ContainSubstring("unknown dialect")))
	})
})
