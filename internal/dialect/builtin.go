package dialect

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/record"
)

var (
	checksOnly       = []record.Type{record.CheckDetailType}
	checksAndCredits = []record.Type{record.CheckDetailType, record.CreditType}
)

// X937 is the X9.37 DSTU base dialect. The assembler's base builders already
// produce its field values, so it carries no overrides.
func X937() *Dialect {
	return &Dialect{
		Name:          "X937",
		CounterPrefix: "X937",
		Standard:      X937DSTU,
		Policy: Policy{
			IncludeAddendum:     true,
			AllowCredits:        true,
			BundleItemTypes:     checksAndCredits,
			CashLetterItemTypes: checksAndCredits,
			FileItemTypes:       checksAndCredits,
		},
	}
}

// X9100 is the X9.100-187 base dialect.
func X9100() *Dialect {
	base := X937().Extend("X9100", "X9100", func(p *Policy) {
		p.AllowCredits = false
		p.CashLetterItemTypes = checksOnly
		p.FileItemTypes = checksOnly
	},
		On(func(h *record.FileHeader, _ *Scope) {
			h.CountryCode = ""
		}),
		On(func(h *record.CashLetterHeader, s *Scope) {
			h.CreationDate = s.BusinessDate
		}),
		On(func(h *record.BundleHeader, _ *Scope) {
			h.ID = ""
		}),
		On(func(d *record.CheckDetail, _ *Scope) {
			d.BOFDIndicator = "U"
		}),
		On(func(c *record.FileControl, s *Scope) {
			c.ImmediateOriginContactName = s.Config.ContactName
			c.ImmediateOriginContactPhoneNumber = s.Config.ContactPhone
		}),
	)
	base.Standard = X9100187
	return base
}

// USBank is X9.100-187 under its own counters.
func USBank() *Dialect {
	return X9100().Extend("USBank", "USBank", nil)
}

// CassCommercialBank identifies the depositor by institution routing number
// throughout and sends checks without addenda.
func CassCommercialBank() *Dialect {
	institution := func(s *Scope) string {
		if v := s.Config.Values.Value(KeyInstitutionRoutingNumber); v != "" {
			return v
		}
		return s.Config.ImageInstitutionRoutingNumber()
	}

	return X937().Extend("CassCommercialBank", "CassCommercial", func(p *Policy) {
		p.IncludeAddendum = false
		p.RawOnUs = true
		p.BundleItemTypes = checksOnly
		p.CashLetterItemTypes = checksOnly
	},
		On(func(h *record.FileHeader, s *Scope) {
			h.ImmediateOriginRoutingNumber = institution(s)
		}),
		On(func(h *record.CashLetterHeader, s *Scope) {
			h.ECEInstitutionRoutingNumber = institution(s)
		}),
		On(func(h *record.BundleHeader, s *Scope) {
			h.ECEInstitutionRoutingNumber = institution(s)
			h.ID = strconv.Itoa(s.BundleIndex + 1)
		}),
		On(func(d *record.CheckDetail, _ *Scope) {
			d.MICRValidIndicator = ""
		}),
		On(func(d *record.ImageViewDetail, s *Scope) {
			d.ImageCreatorRoutingNumber = institution(s)
		}),
		On(func(d *record.ImageViewData, s *Scope) {
			d.ECEInstitutionRoutingNumber = institution(s)
		}),
		On(func(c *record.BundleControl, _ *Scope) {
			c.MICRValidTotalAmount = decimal.Zero
		}),
		On(func(c *record.CashLetterControl, s *Scope) {
			c.ECEInstitutionName = s.Config.OriginName
			c.SettlementDate = time.Time{}
		}),
		On(func(c *record.FileControl, _ *Scope) {
			c.ImmediateOriginContactName = ""
			c.ImmediateOriginContactPhoneNumber = "0"
		}),
	)
}

// CommerceBank is X9.100-187 with a client ID in the bundle header, a
// weekday cycle number and an optional deposit ticket in the item counts of
// every scope.
func CommerceBank() *Dialect {
	countItems := func(s *Scope, current int) int {
		if s.Config.CountDepositSlip {
			return record.CountTypes(s.Records, checksAndCredits...)
		}
		return current
	}

	return X9100().Extend("CommerceBank", "CommerceBank", func(p *Policy) {
		p.IncludeAddendum = false
		p.RawOnUs = true
		p.AllowCredits = true
		p.BundleItemTypes = checksOnly
	},
		On(func(h *record.FileHeader, s *Scope) {
			if s.Config.ImmediateOriginRoutingNumber != "" {
				h.ImmediateOriginRoutingNumber = s.Config.ImmediateOriginRoutingNumber
			}
		}),
		On(func(h *record.BundleHeader, s *Scope) {
			h.CollectionTypeIndicator = s.Config.CollectionType
			if v := s.Config.Values.Value(KeyLegacyRoutingNumber); v != "" {
				h.DestinationRoutingNumber = v
			}
			if s.Config.CommerceBankClientID != "" {
				h.ECEInstitutionRoutingNumber = s.Config.CommerceBankClientID
			}
			h.ID = strconv.Itoa(s.BundleIndex)
			h.SequenceNumber = strconv.Itoa(s.BundleIndex + 1)
			h.CycleNumber = CycleNumber(s.ExportedAt)
			h.ReturnLocationRoutingNumber = ""
		}),
		On(func(d *record.CheckDetail, s *Scope) {
			d.MICRValidIndicator = ""
			d.ECEInstitutionItemSequenceNumber = FormatSequence(s.Sequence, JustifyRight)
		}),
		On(func(d *record.ImageViewData, s *Scope) {
			d.ECEInstitutionItemSequenceNumber = FormatSequence(s.Sequence, JustifyRight)
		}),
		On(func(c *record.BundleControl, s *Scope) {
			c.MICRValidTotalAmount = decimal.Zero
			c.ItemCount = countItems(s, c.ItemCount)
		}),
		On(func(c *record.CashLetterControl, s *Scope) {
			c.ECEInstitutionName = s.Config.OriginName
			c.SettlementDate = time.Time{}
			c.ItemCount = countItems(s, c.ItemCount)
		}),
		On(func(c *record.FileControl, s *Scope) {
			c.TotalItemCount = countItems(s, c.TotalItemCount)
		}),
	)
}

// CycleNumber is the ISO weekday of t, Monday 1 through Sunday 7.
func CycleNumber(t time.Time) string {
	if t.Weekday() == time.Sunday {
		return "7"
	}
	return strconv.Itoa(int(t.Weekday()))
}
