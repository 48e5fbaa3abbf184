package assembler_test

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/assembler"
	"github.com/ginjaninja78/x9-cash-letter/internal/dialect"
	"github.com/ginjaninja78/x9-cash-letter/internal/imaging"
	"github.com/ginjaninja78/x9-cash-letter/internal/record"
	"github.com/ginjaninja78/x9-cash-letter/internal/sequence"
	"github.com/ginjaninja78/x9-cash-letter/internal/types"
)

var (
	exportedAt   = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	businessDate = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	checkImage   = imaging.BlankPage(64, 32, "")
)

// recordingPipeline renders through the real TIFF pipeline and remembers
// what it was asked for.
type recordingPipeline struct {
	*imaging.TIFFPipeline
	templates []string
	fields    []map[string]string
}

func newRecordingPipeline() *recordingPipeline {
	return &recordingPipeline{TIFFPipeline: imaging.NewTIFFPipeline("", nil)}
}

func (p *recordingPipeline) Render(ctx context.Context, template string, fields map[string]string) ([]byte, error) {
	p.templates = append(p.templates, template)
	p.fields = append(p.fields, fields)
	return p.TIFFPipeline.Render(ctx, template, fields)
}

// endorsingPipeline also implements imaging.Endorser.
type endorsingPipeline struct {
	*recordingPipeline
	endorsements []string
}

func (p *endorsingPipeline) Endorse(_ context.Context, image []byte, text string) ([]byte, error) {
	p.endorsements = append(p.endorsements, text)
	return image, nil
}

// cancellingPipeline cancels the export while an image is being prepared.
type cancellingPipeline struct {
	*recordingPipeline
	cancel context.CancelFunc
}

func (p *cancellingPipeline) CompressTiffG4(ctx context.Context, raster []byte) ([]byte, error) {
	p.cancel()
	return p.recordingPipeline.CompressTiffG4(ctx, raster)
}

func profile(extra ...string) dialect.Attributes {
	attrs := dialect.Attributes{
		dialect.KeyOriginName:               "First Church",
		dialect.KeyOriginContactName:        "Pat Doe",
		dialect.KeyOriginContactPhone:       "555 123 4567",
		dialect.KeyOriginRoutingNumber:      "123456780",
		dialect.KeyDestinationName:          "Receiving Bank",
		dialect.KeyDestinationRoutingNumber: "071000013",
		dialect.KeyInstitutionRoutingNumber: "091000019",
		dialect.KeyContactName:              "Ops Desk",
		dialect.KeyContactPhone:             "5550000000",
		dialect.KeyEncoding:                 "ascii",
	}
	for i := 0; i+1 < len(extra); i += 2 {
		attrs[extra[i]] = extra[i+1]
	}
	return attrs
}

func transaction(id int) types.Transaction {
	return types.Transaction{
		ID:            fmt.Sprint(id),
		Amount:        decimal.New(int64(1000+id), -2),
		ProcessedAt:   exportedAt.Add(-time.Hour).Add(time.Duration(id) * time.Second),
		CurrencyType:  "check",
		MICREncrypted: "T071000013T 123456789U 1001",
		Images: []types.Image{
			{Side: types.Front, Data: checkImage},
			{Side: types.Back, Data: checkImage},
		},
	}
}

func transactions(n int) []types.Transaction {
	txs := make([]types.Transaction, n)
	for i := range txs {
		txs[i] = transaction(i + 1)
	}
	return txs
}

func batch(txs ...types.Transaction) []types.Batch {
	return []types.Batch{{ID: "B1", Name: "Sunday", Transactions: txs}}
}

type harness struct {
	alloc     *sequence.Allocator
	pipeline  imaging.Pipeline
	decrypter assembler.Decrypter
}

func newHarness() *harness {
	return &harness{
		alloc:    sequence.NewAllocator(sequence.NewMemoryStore(), nil),
		pipeline: newRecordingPipeline(),
	}
}

func (h *harness) assembler(d *dialect.Dialect, attrs dialect.Attributes) *assembler.Assembler {
	cfg, err := dialect.Resolve(attrs, nil)
	Expect(err).NotTo(HaveOccurred())
	return assembler.New(d, cfg, h.alloc, h.pipeline, assembler.Options{
		ExportedAt:   exportedAt,
		BusinessDate: businessDate,
		Decrypter:    h.decrypter,
	})
}

// bodies splits a length-prefixed stream into record bodies.
func bodies(data []byte) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		Expect(len(data)).To(BeNumerically(">=", 4))
		n := int(binary.BigEndian.Uint32(data[:4]))
		Expect(len(data)).To(BeNumerically(">=", 4+n))
		out = append(out, data[4:4+n])
		data = data[4+n:]
	}
	return out
}

func ofType[T record.Record](records []record.Record) []T {
	var out []T
	for _, r := range records {
		if t, ok := r.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func typeCodes(records []record.Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = int(r.RecordType())
	}
	return out
}
