package assembler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/dialect"
	"github.com/ginjaninja78/x9-cash-letter/internal/record"
	"github.com/ginjaninja78/x9-cash-letter/internal/sequence"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
	"github.com/ginjaninja78/x9-cash-letter/internal/validation"
)

// Partition splits txs into consecutive bundles of at most max transactions.
// Order is preserved and no bundle is empty. A non-positive max uses the
// default bundle size.
func Partition(txs []types.Transaction, max int) [][]types.Transaction {
	if max <= 0 {
		max = dialect.DefaultMaxItemsPerBundle
	}

	var bundles [][]types.Transaction
	for start := 0; start < len(txs); start += max {
		end := start + max
		if end > len(txs) {
			end = len(txs)
		}
		bundles = append(bundles, txs[start:end])
	}
	return bundles
}

// BuildBundle produces one bundle: header, optional credit set, items and
// control.
//
// PARAMETERS:
//   - txs: the bundle's transactions, already partitioned
//   - bundleIndex: zero-based position of the bundle in the cash letter
//
// RETURNS:
//   - the bundle records in emission order
//   - an error naming the failed transaction; nothing is returned with it
func (a *Assembler) BuildBundle(ctx context.Context, txs []types.Transaction, bundleIndex int) ([]record.Record, error) {
	s := a.scope(bundleIndex)

	header := &record.BundleHeader{
		CollectionTypeIndicator:     1,
		DestinationRoutingNumber:    a.config.DestinationRoutingNumber,
		ECEInstitutionRoutingNumber: a.config.BundleInstitutionRoutingNumber(),
		BusinessDate:                a.businessDate,
		CreationDate:                a.exportedAt,
		ID:                          strconv.Itoa(bundleIndex + 1),
		SequenceNumber:              strconv.Itoa(bundleIndex + 1),
		ReturnLocationRoutingNumber: a.config.DestinationRoutingNumber,
	}
	a.dialect.Apply(header, s)

	records := []record.Record{header}

	credits, err := a.buildCredit(ctx, txs, bundleIndex)
	if err != nil {
		return nil, err
	}
	records = append(records, credits...)

	for i := range txs {
		tx := &txs[i]
		items, err := a.BuildItem(ctx, tx, bundleIndex)
		if err != nil {
			return nil, &validation.ValidationError{
				Severity:      validation.SeverityError,
				Rule:          "item",
				Message:       fmt.Sprintf("Error processing transaction %s", tx.ID),
				TransactionID: tx.ID,
				Err:           err,
			}
		}
		records = append(records, items...)
	}

	total := checkTotal(records)
	control := &record.BundleControl{
		ItemCount:            record.CountTypes(records, a.dialect.Policy.BundleItemTypes...),
		TotalAmount:          total,
		MICRValidTotalAmount: total,
		ImageCount:           imageCount(records),
	}
	s.Records = records
	a.dialect.Apply(control, s)

	a.logger.Debug("bundle.built",
		"bundle_index", bundleIndex,
		"items", len(txs),
		"total", total.StringFixed(2),
	)

	return append(records, control), nil
}

// buildCredit produces the credit record and its two deposit slip image
// pairs when the profile asks for them and the dialect allows it.
func (a *Assembler) buildCredit(ctx context.Context, txs []types.Transaction, bundleIndex int) ([]record.Record, error) {
	if !a.dialect.Policy.AllowCredits || a.config.CreditRecordType == dialect.CreditNone {
		return nil, nil
	}

	amount := types.Total(txs)

	seq, err := a.alloc.Next(ctx, sequence.ItemSequenceKey(a.dialect.CounterPrefix))
	if err != nil {
		return nil, err
	}
	seqText := dialect.FormatSequence(seq, dialect.JustifyRight)

	s := a.scope(bundleIndex)
	s.Sequence = seq

	institution := a.config.ImageInstitutionRoutingNumber()
	account := a.config.OriginRoutingNumber + "/" + a.config.CreditDepositCheckNumber

	var credit record.Record
	switch a.config.CreditRecordType {
	case dialect.Credit61A:
		credit = &record.CreditReconciliation{
			RecordUsageIndicator:             5,
			PostingAccountRoutingNumber:      institution,
			PostingAccountBankOnUs:           account,
			ItemAmount:                       amount,
			ECEInstitutionItemSequenceNumber: seqText,
			DocumentationTypeIndicator:       "G",
		}
	default:
		credit = &record.CreditDetail{
			PayorBankRoutingNumber:           institution,
			CreditAccountNumberOnUs:          account,
			ItemAmount:                       amount,
			ECEInstitutionItemSequenceNumber: seqText,
			DocumentationTypeIndicator:       "G",
			DebitCreditIndicator:             "2",
		}
	}
	a.dialect.Apply(credit, s)

	records := []record.Record{credit}

	slip, err := a.depositSlip(ctx, amount, len(txs))
	if err != nil {
		return nil, err
	}
	blank, err := a.images.Render(ctx, "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to render deposit slip back: %w", err)
	}

	for i, data := range [][]byte{slip, blank} {
		side := *s
		side.Side = types.Side(i)

		detail := &record.ImageViewDetail{
			ImageIndicator:            1,
			ImageCreatorRoutingNumber: institution,
			ImageCreatorDate:          a.exportedAt,
			DataSize:                  len(data),
			SideIndicator:             i,
		}
		a.dialect.Apply(detail, &side)

		view := &record.ImageViewData{
			ECEInstitutionRoutingNumber:      institution,
			BundleBusinessDate:               a.businessDate,
			ECEInstitutionItemSequenceNumber: seqText,
			ImageData:                        data,
		}
		a.dialect.Apply(view, &side)

		records = append(records, detail, view)
	}

	return records, nil
}

// depositSlip renders the front of the deposit ticket.
func (a *Assembler) depositSlip(ctx context.Context, amount decimal.Decimal, itemCount int) ([]byte, error) {
	fields := a.mergeFields()
	fields["Amount"] = formatCurrency(amount)
	fields["ItemCount"] = strconv.Itoa(itemCount)

	data, err := a.images.Render(ctx, a.config.DepositSlipTemplate, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to render deposit slip: %w", err)
	}
	return data, nil
}
