// =============================================================================
// X9 Cash Letter Encoder - Record Layouts
// =============================================================================
//
// Typed definitions for every record type the encoder emits. Each struct
// lists its fields in wire order through Fields(); the two-character record
// type prefix is written by Encode.
//
// RECORD TYPES:
//   01 File Header            70 Bundle Control
//   10 Cash Letter Header     90 Cash Letter Control
//   20 Bundle Header          99 File Control
//   25 Check Detail           50 Image View Detail
//   26 Check Detail Addendum A
//   52 Image View Data
//   61 Credit / Credit Reconciliation
//
// Every layout except 52 is exactly 80 bytes. Image View Data is 117 bytes
// plus its variable-length reference key, signature and image data.
//
// =============================================================================

package record

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the numeric record type code.
type Type int

const (
	FileHeaderType           Type = 1
	CashLetterHeaderType     Type = 10
	BundleHeaderType         Type = 20
	CheckDetailType          Type = 25
	CheckDetailAddendumAType Type = 26
	ImageViewDetailType      Type = 50
	ImageViewDataType        Type = 52
	CreditType               Type = 61
	BundleControlType        Type = 70
	CashLetterControlType    Type = 90
	FileControlType          Type = 99
)

// String renders the two-digit wire form of the type.
func (t Type) String() string {
	return fmt.Sprintf("%02d", int(t))
}

// FixedLength is the encoded length of every fixed-size record body.
const FixedLength = 80

// Record is implemented by every record layout.
type Record interface {
	// RecordType returns the record type code.
	RecordType() Type

	// Fields returns the record fields in wire order, excluding the type.
	Fields() []Field
}

// =============================================================================
// FILE SCOPE
// =============================================================================

// FileHeader is record type 01.
type FileHeader struct {
	StandardLevel                     int
	FileTypeIndicator                 string
	ImmediateDestinationRoutingNumber string
	ImmediateOriginRoutingNumber      string
	CreatedAt                         time.Time
	ResendIndicator                   string
	ImmediateDestinationName          string
	ImmediateOriginName               string
	FileIDModifier                    string
	CountryCode                       string
	UserField                         string
	CompanionDocumentIndicator        string
}

func (r *FileHeader) RecordType() Type { return FileHeaderType }

func (r *FileHeader) Fields() []Field {
	return []Field{
		Num("StandardLevel", 2, r.StandardLevel),
		Alpha("FileTypeIndicator", 1, r.FileTypeIndicator),
		Digits("ImmediateDestinationRoutingNumber", 9, r.ImmediateDestinationRoutingNumber, true),
		Digits("ImmediateOriginRoutingNumber", 9, r.ImmediateOriginRoutingNumber, true),
		DateOf("FileCreationDate", r.CreatedAt, true),
		TimeOf("FileCreationTime", r.CreatedAt, true),
		Alpha("ResendIndicator", 1, r.ResendIndicator),
		Alpha("ImmediateDestinationName", 18, r.ImmediateDestinationName),
		Alpha("ImmediateOriginName", 18, r.ImmediateOriginName),
		Alpha("FileIDModifier", 1, r.FileIDModifier),
		Alpha("CountryCode", 2, r.CountryCode),
		Alpha("UserField", 4, r.UserField),
		Alpha("CompanionDocumentIndicator", 1, r.CompanionDocumentIndicator),
	}
}

// FileControl is record type 99.
type FileControl struct {
	CashLetterCount                   int
	TotalRecordCount                  int
	TotalItemCount                    int
	TotalAmount                       decimal.Decimal
	ImmediateOriginContactName        string
	ImmediateOriginContactPhoneNumber string
}

func (r *FileControl) RecordType() Type { return FileControlType }

func (r *FileControl) Fields() []Field {
	return []Field{
		Num("CashLetterCount", 6, r.CashLetterCount),
		Num("TotalRecordCount", 8, r.TotalRecordCount),
		Num("TotalItemCount", 8, r.TotalItemCount),
		Money("FileTotalAmount", 16, r.TotalAmount),
		Alpha("ImmediateOriginContactName", 14, r.ImmediateOriginContactName),
		Alpha("ImmediateOriginContactPhoneNumber", 10, r.ImmediateOriginContactPhoneNumber),
		Blank("Reserved", 16),
	}
}

// =============================================================================
// CASH LETTER SCOPE
// =============================================================================

// CashLetterHeader is record type 10.
type CashLetterHeader struct {
	CollectionTypeIndicator      int
	DestinationRoutingNumber     string
	ECEInstitutionRoutingNumber  string
	BusinessDate                 time.Time
	CreationDate                 time.Time
	CreationTime                 time.Time
	RecordTypeIndicator          string
	DocumentationTypeIndicator   string
	ID                           string
	OriginatorContactName        string
	OriginatorContactPhoneNumber string
	FedWorkType                  string
	ReturnsIndicator             string
	UserField                    string
}

func (r *CashLetterHeader) RecordType() Type { return CashLetterHeaderType }

func (r *CashLetterHeader) Fields() []Field {
	return []Field{
		Num("CollectionTypeIndicator", 2, r.CollectionTypeIndicator),
		Digits("DestinationRoutingNumber", 9, r.DestinationRoutingNumber, true),
		Digits("ECEInstitutionRoutingNumber", 9, r.ECEInstitutionRoutingNumber, true),
		DateOf("CashLetterBusinessDate", r.BusinessDate, true),
		DateOf("CashLetterCreationDate", r.CreationDate, true),
		TimeOf("CashLetterCreationTime", r.CreationTime, true),
		Alpha("CashLetterRecordTypeIndicator", 1, r.RecordTypeIndicator),
		Alpha("CashLetterDocumentationTypeIndicator", 1, r.DocumentationTypeIndicator),
		Alpha("CashLetterID", 8, r.ID),
		Alpha("OriginatorContactName", 14, r.OriginatorContactName),
		Alpha("OriginatorContactPhoneNumber", 10, r.OriginatorContactPhoneNumber),
		Alpha("FedWorkType", 1, r.FedWorkType),
		Alpha("ReturnsIndicator", 1, r.ReturnsIndicator),
		Alpha("UserField", 1, r.UserField),
		Blank("Reserved", 1),
	}
}

// CashLetterControl is record type 90.
type CashLetterControl struct {
	BundleCount        int
	ItemCount          int
	TotalAmount        decimal.Decimal
	ImageCount         int
	ECEInstitutionName string
	SettlementDate     time.Time
}

func (r *CashLetterControl) RecordType() Type { return CashLetterControlType }

func (r *CashLetterControl) Fields() []Field {
	return []Field{
		Num("BundleCount", 6, r.BundleCount),
		Num("ItemsWithinCashLetterCount", 8, r.ItemCount),
		Money("CashLetterTotalAmount", 14, r.TotalAmount),
		Num("ImagesWithinCashLetterCount", 9, r.ImageCount),
		Alpha("ECEInstitutionName", 18, r.ECEInstitutionName),
		DateOf("SettlementDate", r.SettlementDate, false),
		Blank("Reserved", 15),
	}
}

// =============================================================================
// BUNDLE SCOPE
// =============================================================================

// BundleHeader is record type 20.
type BundleHeader struct {
	CollectionTypeIndicator     int
	DestinationRoutingNumber    string
	ECEInstitutionRoutingNumber string
	BusinessDate                time.Time
	CreationDate                time.Time
	ID                          string
	SequenceNumber              string
	CycleNumber                 string
	ReturnLocationRoutingNumber string
	UserField                   string
}

func (r *BundleHeader) RecordType() Type { return BundleHeaderType }

func (r *BundleHeader) Fields() []Field {
	return []Field{
		Num("CollectionTypeIndicator", 2, r.CollectionTypeIndicator),
		Digits("DestinationRoutingNumber", 9, r.DestinationRoutingNumber, true),
		Digits("ECEInstitutionRoutingNumber", 9, r.ECEInstitutionRoutingNumber, true),
		DateOf("BundleBusinessDate", r.BusinessDate, true),
		DateOf("BundleCreationDate", r.CreationDate, true),
		Alpha("BundleID", 10, r.ID),
		Digits("BundleSequenceNumber", 4, r.SequenceNumber, false),
		Alpha("CycleNumber", 2, r.CycleNumber),
		Digits("ReturnLocationRoutingNumber", 9, r.ReturnLocationRoutingNumber, false),
		Alpha("UserField", 5, r.UserField),
		Blank("Reserved", 12),
	}
}

// BundleControl is record type 70.
type BundleControl struct {
	ItemCount            int
	TotalAmount          decimal.Decimal
	MICRValidTotalAmount decimal.Decimal
	ImageCount           int
	UserField            string
}

func (r *BundleControl) RecordType() Type { return BundleControlType }

func (r *BundleControl) Fields() []Field {
	return []Field{
		Num("ItemsWithinBundleCount", 4, r.ItemCount),
		Money("BundleTotalAmount", 12, r.TotalAmount),
		Money("MICRValidTotalAmount", 12, r.MICRValidTotalAmount),
		Num("ImagesWithinBundleCount", 5, r.ImageCount),
		Alpha("UserField", 20, r.UserField),
		Blank("Reserved", 25),
	}
}

// =============================================================================
// ITEM SCOPE
// =============================================================================

// CheckDetail is record type 25.
type CheckDetail struct {
	AuxiliaryOnUs                    string
	ExternalProcessingCode           string
	PayorBankRoutingNumber           string
	PayorBankRoutingNumberCheckDigit string
	OnUs                             string
	ItemAmount                       decimal.Decimal
	ECEInstitutionItemSequenceNumber string
	DocumentationTypeIndicator       string
	ReturnAcceptanceIndicator        string
	MICRValidIndicator               string
	BOFDIndicator                    string
	AddendumCount                    int
	CorrectionIndicator              string
	ArchiveTypeIndicator             string
}

func (r *CheckDetail) RecordType() Type { return CheckDetailType }

func (r *CheckDetail) Fields() []Field {
	return []Field{
		AlphaRight("AuxiliaryOnUs", 15, r.AuxiliaryOnUs),
		Alpha("ExternalProcessingCode", 1, r.ExternalProcessingCode),
		Digits("PayorBankRoutingNumber", 8, r.PayorBankRoutingNumber, true),
		Digits("PayorBankRoutingNumberCheckDigit", 1, r.PayorBankRoutingNumberCheckDigit, true),
		AlphaRight("OnUs", 20, r.OnUs),
		Money("ItemAmount", 10, r.ItemAmount),
		Field{Name: "ECEInstitutionItemSequenceNumber", Kind: Alphanumeric, Width: 15,
			Text: r.ECEInstitutionItemSequenceNumber, Required: true},
		Alpha("DocumentationTypeIndicator", 1, r.DocumentationTypeIndicator),
		Alpha("ReturnAcceptanceIndicator", 1, r.ReturnAcceptanceIndicator),
		Digits("MICRValidIndicator", 1, r.MICRValidIndicator, false),
		Alpha("BOFDIndicator", 1, r.BOFDIndicator),
		Num("CheckDetailRecordAddendumCount", 2, r.AddendumCount),
		Alpha("CorrectionIndicator", 1, r.CorrectionIndicator),
		Alpha("ArchiveTypeIndicator", 1, r.ArchiveTypeIndicator),
	}
}

// CheckDetailAddendum is record type 26 (Check Detail Addendum A).
type CheckDetailAddendum struct {
	RecordNumber            int
	BOFDRoutingNumber       string
	BOFDBusinessDate        time.Time
	BOFDItemSequenceNumber  string
	DepositAccountNumber    string
	BOFDDepositBranch       string
	PayeeName               string
	TruncationIndicator     string
	BOFDConversionIndicator string
	BOFDCorrectionIndicator string
	UserField               string
}

func (r *CheckDetailAddendum) RecordType() Type { return CheckDetailAddendumAType }

func (r *CheckDetailAddendum) Fields() []Field {
	return []Field{
		Num("AddendumARecordNumber", 1, r.RecordNumber),
		Digits("BOFDRoutingNumber", 9, r.BOFDRoutingNumber, true),
		DateOf("BOFDBusinessDate", r.BOFDBusinessDate, true),
		Alpha("BOFDItemSequenceNumber", 15, r.BOFDItemSequenceNumber),
		Alpha("DepositAccountNumberAtBOFD", 18, r.DepositAccountNumber),
		Alpha("BOFDDepositBranch", 5, r.BOFDDepositBranch),
		Alpha("PayeeName", 15, r.PayeeName),
		Alpha("TruncationIndicator", 1, r.TruncationIndicator),
		Alpha("BOFDConversionIndicator", 1, r.BOFDConversionIndicator),
		Digits("BOFDCorrectionIndicator", 1, r.BOFDCorrectionIndicator, false),
		Alpha("UserField", 1, r.UserField),
		Blank("Reserved", 3),
	}
}

// ImageViewDetail is record type 50.
type ImageViewDetail struct {
	ImageIndicator                 int
	ImageCreatorRoutingNumber      string
	ImageCreatorDate               time.Time
	ImageViewFormatIndicator       int
	CompressionAlgorithmIdentifier int
	DataSize                       int
	SideIndicator                  int
	ViewDescriptor                 int
	DigitalSignatureIndicator      int
	DigitalSignatureMethod         int
	SecurityKeySize                int
	StartOfProtectedData           int
	LengthOfProtectedData          int
	ImageRecreateIndicator         int
	UserField                      string
}

func (r *ImageViewDetail) RecordType() Type { return ImageViewDetailType }

func (r *ImageViewDetail) Fields() []Field {
	return []Field{
		Num("ImageIndicator", 1, r.ImageIndicator),
		Digits("ImageCreatorRoutingNumber", 9, r.ImageCreatorRoutingNumber, true),
		DateOf("ImageCreatorDate", r.ImageCreatorDate, true),
		Num("ImageViewFormatIndicator", 2, r.ImageViewFormatIndicator),
		Num("ImageViewCompressionAlgorithmIdentifier", 2, r.CompressionAlgorithmIdentifier),
		Num("ImageViewDataSize", 7, r.DataSize),
		Num("ViewSideIndicator", 1, r.SideIndicator),
		Num("ViewDescriptor", 2, r.ViewDescriptor),
		Num("DigitalSignatureIndicator", 1, r.DigitalSignatureIndicator),
		Num("DigitalSignatureMethod", 2, r.DigitalSignatureMethod),
		Num("SecurityKeySize", 5, r.SecurityKeySize),
		Num("StartOfProtectedData", 7, r.StartOfProtectedData),
		Num("LengthOfProtectedData", 7, r.LengthOfProtectedData),
		Num("ImageRecreateIndicator", 1, r.ImageRecreateIndicator),
		Alpha("UserField", 8, r.UserField),
		Blank("Reserved", 15),
	}
}

// ImageViewData is record type 52. Its length fields are derived from the
// variable-length values so they always match the emitted bytes.
type ImageViewData struct {
	ECEInstitutionRoutingNumber      string
	BundleBusinessDate               time.Time
	CycleNumber                      string
	ECEInstitutionItemSequenceNumber string
	SecurityOriginatorName           string
	SecurityAuthenticatorName        string
	SecurityKeyName                  string
	ClippingOrigin                   int
	ClippingCoordinateH1             int
	ClippingCoordinateH2             int
	ClippingCoordinateV1             int
	ClippingCoordinateV2             int
	ImageReferenceKey                string
	DigitalSignature                 []byte
	ImageData                        []byte
}

func (r *ImageViewData) RecordType() Type { return ImageViewDataType }

func (r *ImageViewData) Fields() []Field {
	return []Field{
		Digits("ECEInstitutionRoutingNumber", 9, r.ECEInstitutionRoutingNumber, true),
		DateOf("BundleBusinessDate", r.BundleBusinessDate, true),
		Alpha("CycleNumber", 2, r.CycleNumber),
		Alpha("ECEInstitutionItemSequenceNumber", 15, r.ECEInstitutionItemSequenceNumber),
		Alpha("SecurityOriginatorName", 16, r.SecurityOriginatorName),
		Alpha("SecurityAuthenticatorName", 16, r.SecurityAuthenticatorName),
		Alpha("SecurityKeyName", 16, r.SecurityKeyName),
		Num("ClippingOrigin", 1, r.ClippingOrigin),
		Num("ClippingCoordinateH1", 4, r.ClippingCoordinateH1),
		Num("ClippingCoordinateH2", 4, r.ClippingCoordinateH2),
		Num("ClippingCoordinateV1", 4, r.ClippingCoordinateV1),
		Num("ClippingCoordinateV2", 4, r.ClippingCoordinateV2),
		Num("LengthOfImageReferenceKey", 4, len(r.ImageReferenceKey)),
		Alpha("ImageReferenceKey", len(r.ImageReferenceKey), r.ImageReferenceKey),
		Num("LengthOfDigitalSignature", 5, len(r.DigitalSignature)),
		Blob("DigitalSignature", r.DigitalSignature),
		Num("LengthOfImageData", 7, len(r.ImageData)),
		Blob("ImageData", r.ImageData),
	}
}

// ImageViewDataFixedLength is the length of a type 52 record without its
// variable-length values.
const ImageViewDataFixedLength = 117

// CreditDetail is the type 61 credit record used by most receiving banks.
type CreditDetail struct {
	AuxiliaryOnUs                    string
	ExternalProcessingCode           string
	PayorBankRoutingNumber           string
	CreditAccountNumberOnUs          string
	ItemAmount                       decimal.Decimal
	ECEInstitutionItemSequenceNumber string
	DocumentationTypeIndicator       string
	AccountTypeCode                  string
	SourceOfWorkCode                 string
	WorkType                         string
	DebitCreditIndicator             string
}

func (r *CreditDetail) RecordType() Type { return CreditType }

func (r *CreditDetail) Fields() []Field {
	return []Field{
		AlphaRight("AuxiliaryOnUs", 15, r.AuxiliaryOnUs),
		Alpha("ExternalProcessingCode", 1, r.ExternalProcessingCode),
		Digits("PayorBankRoutingNumber", 9, r.PayorBankRoutingNumber, true),
		AlphaRight("CreditAccountNumberOnUs", 20, r.CreditAccountNumberOnUs),
		Money("ItemAmount", 10, r.ItemAmount),
		Alpha("ECEInstitutionItemSequenceNumber", 15, r.ECEInstitutionItemSequenceNumber),
		Alpha("DocumentationTypeIndicator", 1, r.DocumentationTypeIndicator),
		Alpha("AccountTypeCode", 1, r.AccountTypeCode),
		Alpha("SourceOfWorkCode", 1, r.SourceOfWorkCode),
		Alpha("WorkType", 1, r.WorkType),
		Alpha("DebitCreditIndicator", 1, r.DebitCreditIndicator),
		Blank("Reserved", 3),
	}
}

// CreditReconciliation is the type 61 credit reconciliation record of the
// X9.37 DSTU (the "61A" shape), carrying a record usage indicator.
type CreditReconciliation struct {
	RecordUsageIndicator             int
	AuxiliaryOnUs                    string
	ExternalProcessingCode           string
	PostingAccountRoutingNumber      string
	PostingAccountBankOnUs           string
	ItemAmount                       decimal.Decimal
	ECEInstitutionItemSequenceNumber string
	DocumentationTypeIndicator       string
	TypeOfAccountCode                string
	SourceOfWork                     string
}

func (r *CreditReconciliation) RecordType() Type { return CreditType }

func (r *CreditReconciliation) Fields() []Field {
	return []Field{
		Num("RecordUsageIndicator", 1, r.RecordUsageIndicator),
		AlphaRight("AuxiliaryOnUs", 15, r.AuxiliaryOnUs),
		Alpha("ExternalProcessingCode", 1, r.ExternalProcessingCode),
		Digits("PostingAccountRoutingNumber", 9, r.PostingAccountRoutingNumber, true),
		AlphaRight("PostingAccountBankOnUs", 20, r.PostingAccountBankOnUs),
		Money("ItemAmount", 14, r.ItemAmount),
		Alpha("ECEInstitutionItemSequenceNumber", 15, r.ECEInstitutionItemSequenceNumber),
		Alpha("DocumentationTypeIndicator", 1, r.DocumentationTypeIndicator),
		Alpha("TypeOfAccountCode", 1, r.TypeOfAccountCode),
		Alpha("SourceOfWork", 1, r.SourceOfWork),
	}
}
