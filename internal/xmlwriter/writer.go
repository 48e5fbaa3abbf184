// =============================================================================
// X9 Cash Letter Encoder - Export Receipt Writer
// =============================================================================
//
// This module writes an XML receipt next to every exported file so operators
// can reconcile a deposit without an X9 viewer. The receipt is derived from
// the record stream itself, so its totals are the totals the bank will see.
//
// XML STRUCTURE:
//   <exportReceipt runId="..." profile="commerce" dialect="CommerceBank">
//     <file name="..." fileIdModifier="A" createdAt="..." records="..." bytes="..."/>
//     <batches>
//       <batch id="B-0304" transactions="2"/>
//     </batches>
//     <cashLetter id="00000012" businessDate="2026-03-03" bundles="1" items="2" ...>
//       <bundle n="1" id="1" items="2" totalAmount="135.00" images="4">
//         <credit sequence="000000000000041" amount="135.00"/>
//         <item n="1" transactionId="1001" sequence="..." amount="125.00"/>
//         <item n="2" transactionId="1002" sequence="..." amount="10.00"/>
//       </bundle>
//     </cashLetter>
//     <fileControl cashLetters="1" records="..." items="2" totalAmount="135.00"/>
//   </exportReceipt>
//
// Item numbering is global across bundles.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/x9-cash-letter/internal/assembler"
	"github.com/ginjaninja78/x9-cash-letter/internal/record"
)

// =============================================================================
// RECEIPT OPTIONS
// =============================================================================

// Receipt carries the run details that are not part of the record stream.
type Receipt struct {
	RunID    string
	Profile  string
	FileName string
	Bytes    int
}

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration writes the <?xml ...?> line.
	// Default: true
	IncludeXMLDeclaration bool

	// IncludeItems lists every check. Large deposits may turn this off.
	// Default: true
	IncludeItems bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		IncludeItems:          true,
	}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate renders the receipt of a successful export with default options.
func Generate(result *assembler.Result, receipt Receipt) ([]byte, error) {
	return GenerateWithOptions(result, receipt, DefaultGenerateOptions())
}

// GenerateWithOptions renders the receipt of a successful export.
//
// RETURNS:
//   - the XML document
//   - an error if result holds no records
func GenerateWithOptions(result *assembler.Result, receipt Receipt, options GenerateOptions) ([]byte, error) {
	if result == nil || len(result.Records) == 0 {
		return nil, fmt.Errorf("cannot write a receipt for an export without records")
	}

	root := buildDocument(result, receipt, options)

	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		buffer.WriteString(xml.Header)
	}
	writeElement(&buffer, root, options.Indent, 0)
	return buffer.Bytes(), nil
}

// WriteFile renders the receipt and writes it to path.
func WriteFile(path string, result *assembler.Result, receipt Receipt) error {
	data, err := Generate(result, receipt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create receipt directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// XMLElement represents a generic XML element.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

// buildDocument walks the record stream and nests bundles, credits and items
// under their cash letter.
func buildDocument(result *assembler.Result, receipt Receipt, options GenerateOptions) XMLElement {
	s := result.Summary

	root := element("exportReceipt",
		"runId", receipt.RunID,
		"profile", receipt.Profile,
		"dialect", s.Dialect,
		"standard", s.Standard,
	)

	batches := element("batches")
	counts := make(map[string]int)
	for _, item := range result.Items {
		counts[item.BatchID]++
	}
	for _, id := range s.BatchIDs {
		batches.Children = append(batches.Children, element("batch",
			"id", id,
			"transactions", strconv.Itoa(counts[id]),
		))
	}

	var (
		file       XMLElement
		cashLetter *XMLElement
		bundle     *XMLElement
		itemIndex  int
		children   []XMLElement
	)

	for _, r := range result.Records {
		switch rec := r.(type) {
		case *record.FileHeader:
			file = element("file",
				"name", receipt.FileName,
				"fileIdModifier", rec.FileIDModifier,
				"fileType", rec.FileTypeIndicator,
				"destination", rec.ImmediateDestinationRoutingNumber,
				"origin", rec.ImmediateOriginRoutingNumber,
				"createdAt", rec.CreatedAt.Format(time.RFC3339),
				"records", strconv.Itoa(s.RecordCount),
				"bytes", strconv.Itoa(receipt.Bytes),
			)

		case *record.CashLetterHeader:
			cl := element("cashLetter",
				"id", rec.ID,
				"businessDate", rec.BusinessDate.Format("2006-01-02"),
			)
			cashLetter = &cl

		case *record.BundleHeader:
			b := element("bundle",
				"n", strconv.Itoa(len(cashLetter.Children)+1),
				"id", rec.ID,
			)
			bundle = &b

		case *record.CreditDetail:
			bundle.Children = append(bundle.Children, credit(rec.ECEInstitutionItemSequenceNumber, rec.ItemAmount))

		case *record.CreditReconciliation:
			bundle.Children = append(bundle.Children, credit(rec.ECEInstitutionItemSequenceNumber, rec.ItemAmount))

		case *record.CheckDetail:
			if !options.IncludeItems {
				itemIndex++
				continue
			}
			item := element("item",
				"n", strconv.Itoa(itemIndex+1),
				"sequence", rec.ECEInstitutionItemSequenceNumber,
				"amount", rec.ItemAmount.StringFixed(2),
				"payorRouting", rec.PayorBankRoutingNumber+rec.PayorBankRoutingNumberCheckDigit,
			)
			if itemIndex < len(result.Items) {
				item.Attributes = append([]xml.Attr{attr("transactionId", result.Items[itemIndex].TransactionID)}, item.Attributes...)
			}
			itemIndex++
			bundle.Children = append(bundle.Children, item)

		case *record.BundleControl:
			bundle.Attributes = append(bundle.Attributes,
				attr("items", strconv.Itoa(rec.ItemCount)),
				attr("totalAmount", rec.TotalAmount.StringFixed(2)),
				attr("images", strconv.Itoa(rec.ImageCount)),
			)
			cashLetter.Children = append(cashLetter.Children, *bundle)
			bundle = nil

		case *record.CashLetterControl:
			cashLetter.Attributes = append(cashLetter.Attributes,
				attr("bundles", strconv.Itoa(rec.BundleCount)),
				attr("items", strconv.Itoa(rec.ItemCount)),
				attr("images", strconv.Itoa(rec.ImageCount)),
				attr("totalAmount", rec.TotalAmount.StringFixed(2)),
			)
			children = append(children, *cashLetter)
			cashLetter = nil

		case *record.FileControl:
			children = append(children, element("fileControl",
				"cashLetters", strconv.Itoa(rec.CashLetterCount),
				"records", strconv.Itoa(rec.TotalRecordCount),
				"items", strconv.Itoa(rec.TotalItemCount),
				"totalAmount", rec.TotalAmount.StringFixed(2),
			))
		}
	}

	root.Children = append([]XMLElement{file, batches}, children...)
	return root
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// element creates an element from alternating attribute names and values.
func element(name string, attrs ...string) XMLElement {
	e := XMLElement{XMLName: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attributes = append(e.Attributes, attr(attrs[i], attrs[i+1]))
	}
	return e
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func credit(sequence string, amount decimal.Decimal) XMLElement {
	return element("credit", "sequence", sequence, "amount", amount.StringFixed(2))
}

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, e XMLElement, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}

	buffer.WriteString("<")
	buffer.WriteString(e.XMLName.Local)
	for _, a := range e.Attributes {
		fmt.Fprintf(buffer, " %s=\"%s\"", a.Name.Local, escapeXML(a.Value))
	}

	if len(e.Children) == 0 && e.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")
	if e.Value != "" {
		buffer.WriteString(escapeXML(e.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range e.Children {
			writeElement(buffer, child, indent, level+1)
		}
		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(e.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes special characters for XML.
func escapeXML(s string) string {
	var buffer bytes.Buffer
	if err := xml.EscapeText(&buffer, []byte(s)); err != nil {
		return s
	}
	return buffer.String()
}
