// =============================================================================
// X9 Cash Letter Encoder - Dialect Configuration
// =============================================================================
//
// A Configuration is resolved once per export from a bank profile's
// attributes and is read-only afterwards. Sealed values are opened here so
// nothing downstream ever sees ciphertext.
//
// ROUTING NUMBER FALLBACKS:
//   Destination  <- DestinationRoutingNumber, RoutingNumber
//   Origin       <- OriginRoutingNumber, AccountNumber
//   Institution  <- InstitutionRoutingNumber, RoutingNumber
//   Cash letter  <- InstitutionRoutingNumber, AccountNumber
//   Bundle       <- Institution, then Destination
//   Image/BOFD   <- Institution, then Origin
//   BOFD         <- BOFDRoutingNumber, then Image/BOFD institution
//
// =============================================================================

package dialect

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/x9-cash-letter/internal/record"
)

// DefaultMaxItemsPerBundle bounds bundles when a profile sets no limit.
const DefaultMaxItemsPerBundle = 200

// CreditRecordType selects the credit record emitted at the top of each
// bundle.
type CreditRecordType int

const (
	CreditNone CreditRecordType = iota
	Credit61
	Credit61A
)

// ParseCreditRecordType accepts None, Type61 and Type61A (or 61 and 61A).
func ParseCreditRecordType(s string) (CreditRecordType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "0":
		return CreditNone, nil
	case "type61", "61", "1":
		return Credit61, nil
	case "type61a", "61a", "2":
		return Credit61A, nil
	}
	return CreditNone, fmt.Errorf("unknown credit record type %q", s)
}

// String returns the profile spelling of the type.
func (c CreditRecordType) String() string {
	switch c {
	case Credit61:
		return "Type61"
	case Credit61A:
		return "Type61A"
	}
	return "None"
}

// Justification controls how item sequence numbers fill their 15 columns.
type Justification int

const (
	JustifyRight Justification = iota
	JustifyLeft
)

// ParseJustification accepts Left and Right; anything else is Right.
func ParseJustification(s string) Justification {
	if strings.EqualFold(strings.TrimSpace(s), "left") {
		return JustifyLeft
	}
	return JustifyRight
}

// FormatSequence renders an item sequence number in its 15-column form.
func FormatSequence(n int64, j Justification) string {
	if j == JustifyLeft {
		return fmt.Sprintf("%-15d", n)
	}
	return fmt.Sprintf("%015d", n)
}

// Configuration is the resolved, read-only view of a bank profile.
type Configuration struct {
	// Values holds every attribute after sealed values were opened.
	Values Attributes

	OriginName         string
	OriginContactName  string
	OriginContactPhone string
	DestinationName    string
	InstitutionName    string

	DestinationRoutingNumber string
	OriginRoutingNumber      string
	InstitutionRoutingNumber string

	// CashLetterInstitutionRoutingNumber is the ECE institution of the
	// cash letter header, which falls back to the legacy account number.
	CashLetterInstitutionRoutingNumber string

	BOFDRoutingNumber string

	Justification            Justification
	TruncationIndicator      string
	CreditRecordType         CreditRecordType
	CreditDepositCheckNumber string
	DepositSlipTemplate      string
	TestMode                 bool
	CurrencyTypes            []string
	EnableEndorsement        bool
	EndorsementTemplate      string
	MaxItemsPerBundle        int
	Charset                  record.Charset

	ContactName  string
	ContactPhone string

	CommerceBankClientID         string
	ImmediateOriginRoutingNumber string
	RoutingTransitNumber         string
	CollectionType               int
	CountDepositSlip             bool
	LocationField                string
}

// Decrypter opens sealed attribute values. Values it does not recognise as
// sealed must be returned unchanged.
type Decrypter interface {
	Decrypt(value string) (string, error)
}

// Resolve builds a Configuration from attrs. A nil decrypter leaves every
// value as written.
func Resolve(attrs Attributes, dec Decrypter) (*Configuration, error) {
	values := make(Attributes, len(attrs))
	for k, v := range attrs {
		if dec != nil {
			opened, err := dec.Decrypt(v)
			if err != nil {
				return nil, fmt.Errorf("failed to open attribute %s: %w", k, err)
			}
			v = opened
		}
		values[k] = v
	}

	cfg := &Configuration{
		Values:             values,
		OriginName:         values.Value(KeyOriginName),
		OriginContactName:  values.Value(KeyOriginContactName),
		OriginContactPhone: strings.ReplaceAll(values.Value(KeyOriginContactPhone), " ", ""),
		DestinationName:    values.Value(KeyDestinationName),
		InstitutionName:    values.ValueWithFallback(KeyInstitutionName, KeyOriginName),

		DestinationRoutingNumber:           values.ValueWithFallback(KeyDestinationRoutingNumber, KeyLegacyRoutingNumber),
		OriginRoutingNumber:                values.ValueWithFallback(KeyOriginRoutingNumber, KeyLegacyAccountNumber),
		InstitutionRoutingNumber:           values.ValueWithFallback(KeyInstitutionRoutingNumber, KeyLegacyRoutingNumber),
		CashLetterInstitutionRoutingNumber: values.ValueWithFallback(KeyInstitutionRoutingNumber, KeyLegacyAccountNumber),
		BOFDRoutingNumber:                  values.Value(KeyBOFDRoutingNumber),

		Justification:            ParseJustification(values.Value(KeyItemSequenceNumberJustification)),
		TruncationIndicator:      "N",
		CreditDepositCheckNumber: values.Value(KeyCreditDepositCheckNumber),
		DepositSlipTemplate:      values[KeyDepositSlipTemplate],
		TestMode:                 values.Bool(KeyTestMode, true),
		CurrencyTypes:            values.List(KeyCurrencyTypes),
		EnableEndorsement:        values.Bool(KeyEnableDigitalEndorsement, false),
		EndorsementTemplate:      values[KeyCheckEndorsementTemplate],

		ContactName:  values.Value(KeyContactName),
		ContactPhone: strings.ReplaceAll(values.Value(KeyContactPhone), " ", ""),

		CommerceBankClientID:         values.Value(KeyCommerceBankClientID),
		ImmediateOriginRoutingNumber: values.Value(KeyImmediateOriginRoutingNumber),
		RoutingTransitNumber:         values.Value(KeyRoutingTransitNumber),
		CountDepositSlip:             values.Bool(KeyCountDepositSlip, false),
		LocationField:                values.Value(KeyLocationField),
	}

	if t := values.Value(KeyTruncationIndicator); t != "" {
		cfg.TruncationIndicator = strings.ToUpper(t[:1])
	}
	if cfg.CreditDepositCheckNumber == "" {
		cfg.CreditDepositCheckNumber = "20"
	}
	if len(cfg.CurrencyTypes) == 0 {
		cfg.CurrencyTypes = []string{"check"}
	}

	var err error
	if cfg.CreditRecordType, err = ParseCreditRecordType(values.Value(KeyCreditRecordType)); err != nil {
		return nil, err
	}
	if cfg.MaxItemsPerBundle, err = values.Int(KeyMaxItemsPerBundle, DefaultMaxItemsPerBundle); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyMaxItemsPerBundle, err)
	}
	if cfg.MaxItemsPerBundle <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive, got %d", KeyMaxItemsPerBundle, cfg.MaxItemsPerBundle)
	}
	if cfg.CollectionType, err = values.Int(KeyCollectionTypeValue, 1); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyCollectionTypeValue, err)
	}
	if cfg.Charset, err = record.ParseCharset(values.Value(KeyEncoding)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// BundleInstitutionRoutingNumber is the ECE institution of bundle headers.
func (c *Configuration) BundleInstitutionRoutingNumber() string {
	if c.InstitutionRoutingNumber != "" {
		return c.InstitutionRoutingNumber
	}
	return c.DestinationRoutingNumber
}

// ImageInstitutionRoutingNumber is the ECE institution of image and credit
// records.
func (c *Configuration) ImageInstitutionRoutingNumber() string {
	if c.InstitutionRoutingNumber != "" {
		return c.InstitutionRoutingNumber
	}
	return c.OriginRoutingNumber
}

// BOFD returns the bank of first deposit routing number.
func (c *Configuration) BOFD() string {
	if c.BOFDRoutingNumber != "" {
		return c.BOFDRoutingNumber
	}
	return c.ImageInstitutionRoutingNumber()
}

// AllowsCurrency reports whether currencyType is in the allowed set.
func (c *Configuration) AllowsCurrency(currencyType string) bool {
	currencyType = strings.ToLower(strings.TrimSpace(currencyType))
	for _, allowed := range c.CurrencyTypes {
		if allowed == currencyType {
			return true
		}
	}
	return false
}

// FileTypeIndicator is T in test mode and P in production.
func (c *Configuration) FileTypeIndicator() string {
	if c.TestMode {
		return "T"
	}
	return "P"
}
