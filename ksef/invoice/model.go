// Package invoice buduje dokument FA(2) z danych aplikacyjnych i serializuje
// go do XML w dokładnie takiej strukturze i kolejności, jakiej wymaga schemat.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// VatRate to kod stawki przypisany do wiersza. Każdy kod trafia do dokładnie
// jednego koszyka kwot w sekcji sum podatku.
type VatRate string

const (
	RateStandard      VatRate = "23"
	RateReduced1      VatRate = "8"
	RateReduced2      VatRate = "5"
	RateTaxi          VatRate = "4"
	RateSpecial       VatRate = "np I"
	RateZeroDomestic  VatRate = "0"
	RateZeroExport    VatRate = "0 WDT"
	RateExempt        VatRate = "zw"
	RateOutOfScope    VatRate = "np"
	RateReverseCharge VatRate = "oo"
	RateMargin        VatRate = "marza"
)

// percentage zwraca stawkę procentową dla kodów opodatkowanych; pozostałe
// koszyki mają zero podatku.
func (r VatRate) percentage() decimal.Decimal {
	switch r {
	case RateStandard:
		return decimal.NewFromInt(23)
	case RateReduced1:
		return decimal.NewFromInt(8)
	case RateReduced2:
		return decimal.NewFromInt(5)
	case RateTaxi:
		return decimal.NewFromInt(4)
	}
	return decimal.Zero
}

func (r VatRate) valid() bool {
	switch r {
	case RateStandard, RateReduced1, RateReduced2, RateTaxi, RateSpecial,
		RateZeroDomestic, RateZeroExport, RateExempt, RateOutOfScope,
		RateReverseCharge, RateMargin:
		return true
	}
	return false
}

type InvoiceKind string

const (
	KindStandard          InvoiceKind = "VAT"
	KindCorrection        InvoiceKind = "KOR"
	KindAdvance           InvoiceKind = "ZAL"
	KindSettlement        InvoiceKind = "ROZ"
	KindSimplified        InvoiceKind = "UPR"
	KindCorrectionAdvance InvoiceKind = "KOR_ZAL"
)

type AddressData struct {
	CountryCode string `validate:"required,len=2,uppercase"`
	Line1       string `validate:"required"`
	Line2       string
}

// SellerContext to stała tożsamość wystawcy, wstrzykiwana z konfiguracji
// aplikacji, nie z danych faktury.
type SellerContext struct {
	NIP        string      `validate:"required,len=10,numeric"`
	Name       string      `validate:"required"`
	Address    AddressData `validate:"required"`
	SystemInfo string
}

type BuyerIdentity string

const (
	// BuyerByNIP identyfikuje krajowego podatnika numerem NIP.
	BuyerByNIP BuyerIdentity = "nip"
	// BuyerByVatUE identyfikuje podatnika unijnego numerem VAT UE z prefiksem kraju.
	BuyerByVatUE BuyerIdentity = "vat-ue"
	// BuyerByOtherID identyfikuje podmiot spoza UE identyfikatorem krajowym.
	BuyerByOtherID BuyerIdentity = "other"
	// BuyerNoID oznacza nabywcę bez identyfikatora podatkowego.
	BuyerNoID BuyerIdentity = "none"
)

// BuyerData wskazuje dokładnie jedną gałąź identyfikacji nabywcy.
// Pola spoza wybranej gałęzi muszą pozostać puste.
type BuyerData struct {
	Identity BuyerIdentity `validate:"required"`

	NIP           string // dla BuyerByNIP
	EUCountryCode string // dla BuyerByVatUE
	VatUE         string // dla BuyerByVatUE
	CountryCode   string // dla BuyerByOtherID
	OtherID       string // dla BuyerByOtherID

	Name    string `validate:"required"`
	Address *AddressData
}

type RecipientData struct {
	NIP     string `validate:"omitempty,len=10,numeric"`
	Name    string `validate:"required"`
	Address *AddressData
}

type LineData struct {
	Name      string          `validate:"required"`
	Unit      string          `validate:"required"`
	Quantity  decimal.Decimal `validate:"required"`
	UnitPrice decimal.Decimal `validate:"required"`
	Rate      VatRate         `validate:"required"`

	GTU   string
	CN    string
	PKWiU string
}

// ExemptionData to grupa wyboru: zwolnienie z podaną podstawą prawną albo
// jawny brak zwolnienia. Basis jest wymagane wyłącznie gdy Applies.
type ExemptionData struct {
	Applies bool
	Basis   string
}

type NewTransportData struct {
	Applies bool
}

type MarginScheme string

const (
	MarginTravel      MarginScheme = "travel"
	MarginUsedGoods   MarginScheme = "used-goods"
	MarginArt         MarginScheme = "art"
	MarginCollectible MarginScheme = "collectible"
)

type MarginData struct {
	Applies bool
	Scheme  MarginScheme
}

type AnnotationsData struct {
	CashMethod    bool
	SelfBilling   bool
	ReverseCharge bool
	SplitPayment  bool
	Simplified    bool
	Exemption     ExemptionData
	NewTransport  NewTransportData
	Margin        MarginData
}

// CorrectionData odwołuje się do korygowanej faktury. Odniesienie KSeF to
// grupa wyboru: znany numer albo jawna deklaracja jego braku — nigdy oba,
// nigdy żaden.
type CorrectionData struct {
	Reason            string
	CorrectedIssue    time.Time `validate:"required"`
	CorrectedNumber   string    `validate:"required"`
	KsefNumber        string
	KsefNumberUnknown bool
}

type PaymentForm int

const (
	PaymentCash PaymentForm = iota + 1
	PaymentCard
	PaymentVoucher
	PaymentCheque
	PaymentCredit
	PaymentTransfer
	PaymentMobile
)

type BankAccountData struct {
	Number   string `validate:"required"`
	SWIFT    string
	BankName string
}

type PaymentData struct {
	Paid        bool
	PaidDate    *time.Time
	DueDate     *time.Time
	Form        PaymentForm
	BankAccount *BankAccountData
}

// InvoiceData to aplikacyjny model faktury — wejście dla Build.
type InvoiceData struct {
	Number    string    `validate:"required"`
	IssueDate time.Time `validate:"required"`
	SaleDate  *time.Time
	Currency  string `validate:"required,len=3,uppercase"`

	Buyer     BuyerData      `validate:"required"`
	Recipient *RecipientData `validate:"omitempty"`

	Kind        InvoiceKind `validate:"required"`
	Correction  *CorrectionData
	Annotations AnnotationsData
	Lines       []LineData `validate:"required,min=1,dive"`
	Payment     *PaymentData
}
