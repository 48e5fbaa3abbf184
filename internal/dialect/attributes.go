package dialect

import (
	"strconv"
	"strings"
)

// Attribute keys understood by the built-in dialects.
const (
	KeyOriginName                      = "OriginName"
	KeyOriginContactName               = "OriginContactName"
	KeyOriginContactPhone              = "OriginContactPhone"
	KeyOriginRoutingNumber             = "OriginRoutingNumber"
	KeyDestinationName                 = "DestinationName"
	KeyDestinationRoutingNumber        = "DestinationRoutingNumber"
	KeyInstitutionName                 = "InstitutionName"
	KeyInstitutionRoutingNumber        = "InstitutionRoutingNumber"
	KeyItemSequenceNumberJustification = "ItemSequenceNumberJustification"
	KeyBOFDRoutingNumber               = "BOFDRoutingNumber"
	KeyTruncationIndicator             = "TruncationIndicator"
	KeyCreditRecordType                = "CreditRecordType"
	KeyCreditDepositCheckNumber        = "CreditDepositCheckNumber"
	KeyDepositSlipTemplate             = "DepositSlipTemplate"
	KeyTestMode                        = "TestMode"
	KeyCurrencyTypes                   = "CurrencyTypes"
	KeyEnableDigitalEndorsement        = "EnableDigitalEndorsement"
	KeyCheckEndorsementTemplate        = "CheckEndorsementTemplate"
	KeyMaxItemsPerBundle               = "MaxItemsPerBundle"
	KeyEncoding                        = "Encoding"

	// Legacy keys kept for profiles written before the split into origin,
	// destination and institution routing numbers.
	KeyLegacyRoutingNumber = "RoutingNumber"
	KeyLegacyAccountNumber = "AccountNumber"

	// X9.100 contact keys.
	KeyContactName  = "ContactName"
	KeyContactPhone = "ContactPhone"

	// Commerce Bank keys.
	KeyCommerceBankClientID         = "CommerceBankClientId"
	KeyImmediateOriginRoutingNumber = "ImmediateOriginRoutingNumber"
	KeyRoutingTransitNumber         = "RoutingTransitNumber"
	KeyCollectionTypeValue          = "CollectionTypeValue"
	KeyCountDepositSlip             = "CountDepositSlip"
	KeyLocationField                = "LocationField"
)

// Attributes are the raw string settings of one receiving bank profile.
type Attributes map[string]string

// Value returns the trimmed value for key, or "".
func (a Attributes) Value(key string) string {
	return strings.TrimSpace(a[key])
}

// ValueWithFallback prefers primary and falls back to legacy when primary
// is empty.
func (a Attributes) ValueWithFallback(primary, legacy string) string {
	if v := a.Value(primary); v != "" {
		return v
	}
	return a.Value(legacy)
}

// Bool parses key as a boolean, returning def when unset or unparseable.
func (a Attributes) Bool(key string, def bool) bool {
	v := a.Value(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int parses key as an integer, returning def when unset.
func (a Attributes) Int(key string, def int) (int, error) {
	v := a.Value(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// List splits a comma separated value into trimmed, lower-cased entries.
func (a Attributes) List(key string) []string {
	var out []string
	for _, part := range strings.Split(a.Value(key), ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a copy that can be modified freely.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
