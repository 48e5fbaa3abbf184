package assembler

import (
	"context"
	"fmt"

	"github.com/ginjaninja78/x9-cash-letter/internal/record"
	"github.com/ginjaninja78/x9-cash-letter/internal/sequence"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
)

// BuildCashLetter produces one cash letter holding every transaction of the
// export, bundled by the profile's MaxItemsPerBundle. Cancellation is
// checked before each bundle.
func (a *Assembler) BuildCashLetter(ctx context.Context, txs []types.Transaction) ([]record.Record, error) {
	id, err := a.alloc.Next(ctx, sequence.CashLetterKey(a.dialect.CounterPrefix))
	if err != nil {
		return nil, err
	}

	s := a.scope(0)

	header := &record.CashLetterHeader{
		CollectionTypeIndicator:      1,
		DestinationRoutingNumber:     a.config.DestinationRoutingNumber,
		ECEInstitutionRoutingNumber:  a.config.CashLetterInstitutionRoutingNumber,
		BusinessDate:                 a.businessDate,
		CreationDate:                 a.exportedAt,
		CreationTime:                 a.exportedAt,
		RecordTypeIndicator:          "I",
		DocumentationTypeIndicator:   "G",
		ID:                           fmt.Sprintf("%08d", id),
		OriginatorContactName:        a.config.OriginContactName,
		OriginatorContactPhoneNumber: a.config.OriginContactPhone,
	}
	a.dialect.Apply(header, s)

	records := []record.Record{header}

	for i, bundle := range Partition(txs, a.config.MaxItemsPerBundle) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("export cancelled before bundle %d: %w", i+1, err)
		}

		bundleRecords, err := a.BuildBundle(ctx, bundle, i)
		if err != nil {
			return nil, err
		}
		records = append(records, bundleRecords...)
	}

	control := &record.CashLetterControl{
		BundleCount:        record.CountTypes(records, record.BundleHeaderType),
		ItemCount:          record.CountTypes(records, a.dialect.Policy.CashLetterItemTypes...),
		TotalAmount:        checkTotal(records),
		ImageCount:         imageCount(records),
		ECEInstitutionName: a.config.InstitutionName,
		SettlementDate:     a.exportedAt,
	}
	s.Records = records
	a.dialect.Apply(control, s)

	a.logger.Info("cash_letter.built",
		"cash_letter_id", header.ID,
		"bundles", control.BundleCount,
		"items", control.ItemCount,
	)

	return append(records, control), nil
}
