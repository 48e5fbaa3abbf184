package assembler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ginjaninja78/x9-cash-letter/internal/dialect"
	"github.com/ginjaninja78/x9-cash-letter/internal/imaging"
	"github.com/ginjaninja78/x9-cash-letter/internal/micr"
	"github.com/ginjaninja78/x9-cash-letter/internal/record"
	"github.com/ginjaninja78/x9-cash-letter/internal/sequence"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
	"github.com/ginjaninja78/x9-cash-letter/internal/validation"
)

// BuildItem produces the records of one check: the check detail, its
// addendum when the dialect includes one, and an image view detail/data
// pair for the front and for the back.
//
// Exactly one item sequence number is allocated and shared by every record
// of the item.
func (a *Assembler) BuildItem(ctx context.Context, tx *types.Transaction, bundleIndex int) ([]record.Record, error) {
	front, back := tx.Sides()
	if front == nil || back == nil {
		return nil, validation.MissingImages(tx.ID, nil)
	}

	line, err := a.parseMICR(tx)
	if err != nil {
		return nil, err
	}

	seq, err := a.alloc.Next(ctx, sequence.ItemSequenceKey(a.dialect.CounterPrefix))
	if err != nil {
		return nil, err
	}

	s := a.scope(bundleIndex)
	s.Transaction = tx
	s.MICR = line
	s.Sequence = seq

	seqText := dialect.FormatSequence(seq, a.config.Justification)

	onUs := line.OnUs()
	if a.dialect.Policy.RawOnUs {
		onUs = line.RawOnUs()
	}
	routing, checkDigit := line.PayorBankRouting()

	detail := &record.CheckDetail{
		AuxiliaryOnUs:                    line.AuxOnUs(),
		ExternalProcessingCode:           line.ExternalProcessingCode(),
		PayorBankRoutingNumber:           routing,
		PayorBankRoutingNumberCheckDigit: checkDigit,
		OnUs:                             onUs,
		ItemAmount:                       tx.Amount,
		ECEInstitutionItemSequenceNumber: seqText,
		DocumentationTypeIndicator:       "G",
		MICRValidIndicator:               "1",
		BOFDIndicator:                    "Y",
	}
	if a.dialect.Policy.IncludeAddendum {
		detail.AddendumCount = 1
	}
	a.dialect.Apply(detail, s)

	records := []record.Record{detail}

	if a.dialect.Policy.IncludeAddendum {
		addendum := &record.CheckDetailAddendum{
			RecordNumber:            1,
			BOFDRoutingNumber:       a.config.BOFD(),
			BOFDBusinessDate:        a.businessDate,
			BOFDItemSequenceNumber:  dialect.FormatSequence(seq, dialect.JustifyRight),
			TruncationIndicator:     a.config.TruncationIndicator,
			BOFDConversionIndicator: "2",
			BOFDCorrectionIndicator: "0",
		}
		a.dialect.Apply(addendum, s)
		records = append(records, addendum)
	}

	for _, img := range []*types.Image{front, back} {
		pair, err := a.buildImage(ctx, tx, img, seqText, s)
		if err != nil {
			return nil, err
		}
		records = append(records, pair...)
	}

	return records, nil
}

// parseMICR opens and parses the MICR line of tx, attaching the transaction
// ID to any failure.
func (a *Assembler) parseMICR(tx *types.Transaction) (*micr.Line, error) {
	raw := tx.MICREncrypted
	if a.decrypter != nil && raw != "" {
		opened, err := a.decrypter.Decrypt(raw)
		if err != nil {
			return nil, &micr.DataError{TransactionID: tx.ID, Reason: "MICR line could not be decrypted", Err: err}
		}
		raw = opened
	}

	line, err := micr.Parse(raw)
	if err != nil {
		var dataErr *micr.DataError
		if errors.As(err, &dataErr) {
			dataErr.TransactionID = tx.ID
		}
		return nil, err
	}
	return line, nil
}

// buildImage produces the 50/52 pair of one scanned side. Only an unusable
// image is reported as a missing image; endorsement and cancellation errors
// pass through unchanged.
func (a *Assembler) buildImage(ctx context.Context, tx *types.Transaction, img *types.Image, seqText string, s *dialect.Scope) ([]record.Record, error) {
	data := img.Data

	if img.Side == types.Back && a.config.EnableEndorsement && a.config.EndorsementTemplate != "" {
		endorsed, err := a.endorse(ctx, tx, data)
		if err != nil {
			return nil, err
		}
		data = endorsed
	}

	data, err := a.images.CompressTiffG4(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, validation.MissingImages(tx.ID, fmt.Errorf("failed to prepare %s image: %w", img.Side, err))
	}

	created := a.exportedAt
	if img.CreatedAt != nil {
		created = *img.CreatedAt
	}

	side := *s
	side.Side = img.Side

	detail := &record.ImageViewDetail{
		ImageIndicator:            1,
		ImageCreatorRoutingNumber: a.config.DestinationRoutingNumber,
		ImageCreatorDate:          created,
		DataSize:                  len(data),
		SideIndicator:             int(img.Side),
	}
	a.dialect.Apply(detail, &side)

	view := &record.ImageViewData{
		ECEInstitutionRoutingNumber:      a.config.ImageInstitutionRoutingNumber(),
		BundleBusinessDate:               a.businessDate,
		ECEInstitutionItemSequenceNumber: seqText,
		ImageData:                        data,
	}
	a.dialect.Apply(view, &side)

	return []record.Record{detail, view}, nil
}

// endorse stamps the endorsement on a back image. Pipelines without
// endorsement support leave the image unchanged.
func (a *Assembler) endorse(ctx context.Context, tx *types.Transaction, data []byte) ([]byte, error) {
	endorser, ok := a.images.(imaging.Endorser)
	if !ok {
		a.logger.Warn("image.endorsement_unsupported", "transaction_id", tx.ID)
		return data, nil
	}

	fields := a.mergeFields()
	fields["Amount"] = formatCurrency(tx.Amount)
	fields["BusinessDate"] = a.businessDate.Format("01/02/2006")

	text, err := imaging.RenderString(a.config.EndorsementTemplate, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to render endorsement: %w", err)
	}

	out, err := endorser.Endorse(ctx, data, text)
	if err != nil {
		return nil, fmt.Errorf("failed to endorse image: %w", err)
	}
	return out, nil
}

// mergeFields exposes every profile attribute to templates.
func (a *Assembler) mergeFields() map[string]string {
	fields := make(map[string]string, len(a.config.Values)+3)
	for k, v := range a.config.Values {
		fields[k] = v
	}
	return fields
}
