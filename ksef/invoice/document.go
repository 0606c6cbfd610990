package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document to drzewo odwzorowujące strukturę FA(2) — zbudowane raz,
// niemodyfikowane po zbudowaniu i serializowane wyłącznie w całości.
type Document struct {
	Header    Header
	Seller    Seller
	Buyer     Buyer
	Recipient *Recipient
	Details   Details
}

type Header struct {
	CreatedAt  time.Time
	SystemInfo string
}

type Address struct {
	CountryCode string
	Line1       string
	Line2       string
}

type Seller struct {
	NIP     string
	Name    string
	Address Address
}

type Buyer struct {
	Identity      BuyerIdentity
	NIP           string
	EUCountryCode string
	VatUE         string
	CountryCode   string
	OtherID       string
	Name          string
	Address       *Address
}

type Recipient struct {
	NIP     string
	Name    string
	Address *Address
}

// Amount para netto/VAT jednego koszyka. Nil oznacza koszyk nieobecny —
// cała grupa jest wtedy pomijana przy serializacji.
type Amount struct {
	Net decimal.Decimal
	Vat decimal.Decimal
}

// VatTotals trzyma koszyki kwot w ustalonej kolejności schematu:
// podstawowa → obniżona 1 → obniżona 2 → taxi → procedura szczególna →
// 0% krajowa → 0% eksport → zwolniona → poza zakresem → odwrotne
// obciążenie → marża. Ta kolejność jest częścią kontraktu zewnętrznego.
type VatTotals struct {
	Standard      *Amount // P_13_1 / P_14_1
	Reduced1      *Amount // P_13_2 / P_14_2
	Reduced2      *Amount // P_13_3 / P_14_3
	Taxi          *Amount // P_13_4 / P_14_4
	Special       *Amount // P_13_5 / P_14_5
	ZeroDomestic  *decimal.Decimal // P_13_6_1
	ZeroExport    *decimal.Decimal // P_13_6_2
	Exempt        *decimal.Decimal // P_13_7
	OutOfScope    *decimal.Decimal // P_13_8
	ReverseCharge *decimal.Decimal // P_13_9
	Margin        *decimal.Decimal // P_13_10
	Total         decimal.Decimal  // P_15
}

type Exemption struct {
	Applies bool
	Basis   string
}

type NewTransport struct {
	Applies bool
}

type Margin struct {
	Applies bool
	Scheme  MarginScheme
}

type Annotations struct {
	CashMethod    bool
	SelfBilling   bool
	ReverseCharge bool
	SplitPayment  bool
	Simplified    bool
	Exemption     Exemption
	NewTransport  NewTransport
	Margin        Margin
}

// CorrectedRef koduje odniesienie do korygowanej faktury: znany numer KSeF
// albo jawny brak — rozstrzygnięte na etapie Build.
type CorrectedRef struct {
	IssueDate         time.Time
	Number            string
	KsefNumber        string
	KsefNumberUnknown bool
}

type Correction struct {
	Reason    string
	Corrected CorrectedRef
}

// Line to wiersz faktury z wartościami policzonymi raz, przy budowie.
// Po serializacji nigdy nie są przeliczane ponownie, żeby wysłany XML
// zgadzał się z lokalnie zapisaną migawką.
type Line struct {
	Ordinal   int
	Name      string
	Unit      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Net       decimal.Decimal
	Vat       decimal.Decimal
	Gross     decimal.Decimal
	Rate      VatRate
	GTU       string
	CN        string
	PKWiU     string
}

type BankAccount struct {
	Number   string
	SWIFT    string
	BankName string
}

type Payment struct {
	Paid        bool
	PaidDate    *time.Time
	DueDate     *time.Time
	Form        PaymentForm
	BankAccount *BankAccount
}

type Details struct {
	Currency    string
	IssueDate   time.Time
	SaleDate    *time.Time
	Number      string
	Totals      VatTotals
	Annotations Annotations
	Kind        InvoiceKind
	Correction  *Correction
	Lines       []Line
	Payment     *Payment
}
