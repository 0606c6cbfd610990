package invoice

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/alapierre/go-ksef-gateway/ksef"
)

var validate = validator.New()

// Build mapuje model aplikacyjny na drzewo dokumentu FA(2), stemplując
// nagłówek bieżącym czasem.
func Build(data InvoiceData, seller SellerContext) (*Document, error) {
	return BuildAt(data, seller, time.Now().UTC())
}

// BuildAt to czysta wersja Build: żadnego I/O, żadnych efektów ubocznych.
// Wszystkie naruszenia grup wyboru i warunków wstępnych kończą się
// InvalidInputError przed serializacją.
func BuildAt(data InvoiceData, seller SellerContext, createdAt time.Time) (*Document, error) {

	if err := validate.Struct(seller); err != nil {
		return nil, &ksef.InvalidInputError{Field: "seller", Reason: err.Error()}
	}
	if err := validate.Struct(data); err != nil {
		return nil, &ksef.InvalidInputError{Field: "invoice", Reason: err.Error()}
	}
	if err := checkBuyerChoice(data.Buyer); err != nil {
		return nil, err
	}
	if err := checkKind(data); err != nil {
		return nil, err
	}
	if err := checkAnnotations(data.Annotations); err != nil {
		return nil, err
	}

	lines, totals, err := computeLines(data.Lines)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Header: Header{
			CreatedAt:  createdAt,
			SystemInfo: seller.SystemInfo,
		},
		Seller: Seller{
			NIP:     seller.NIP,
			Name:    seller.Name,
			Address: toAddress(seller.Address),
		},
		Buyer:     toBuyer(data.Buyer),
		Recipient: toRecipient(data.Recipient),
		Details: Details{
			Currency:    data.Currency,
			IssueDate:   data.IssueDate,
			SaleDate:    data.SaleDate,
			Number:      data.Number,
			Totals:      totals,
			Annotations: toAnnotations(data.Annotations),
			Kind:        data.Kind,
			Correction:  toCorrection(data.Correction),
			Lines:       lines,
			Payment:     toPayment(data.Payment),
		},
	}
	return doc, nil
}

func checkBuyerChoice(b BuyerData) error {
	switch b.Identity {
	case BuyerByNIP:
		if len(b.NIP) != 10 {
			return &ksef.InvalidInputError{Field: "buyer.nip", Reason: "must be exactly 10 digits"}
		}
		if b.VatUE != "" || b.OtherID != "" {
			return &ksef.InvalidInputError{Field: "buyer", Reason: "nip identity must not carry other identifiers"}
		}
	case BuyerByVatUE:
		if b.EUCountryCode == "" || b.VatUE == "" {
			return &ksef.InvalidInputError{Field: "buyer.vatUE", Reason: "EU country code and VAT UE number are required"}
		}
		if b.NIP != "" || b.OtherID != "" {
			return &ksef.InvalidInputError{Field: "buyer", Reason: "vat-ue identity must not carry other identifiers"}
		}
	case BuyerByOtherID:
		if b.CountryCode == "" || b.OtherID == "" {
			return &ksef.InvalidInputError{Field: "buyer.otherID", Reason: "country code and identifier are required"}
		}
		if b.NIP != "" || b.VatUE != "" {
			return &ksef.InvalidInputError{Field: "buyer", Reason: "other-country identity must not carry other identifiers"}
		}
	case BuyerNoID:
		if b.NIP != "" || b.VatUE != "" || b.OtherID != "" {
			return &ksef.InvalidInputError{Field: "buyer", Reason: "no-id buyer must not carry any identifier"}
		}
	default:
		return &ksef.InvalidInputError{Field: "buyer.identity", Reason: fmt.Sprintf("unknown identity kind: %q", b.Identity)}
	}
	return nil
}

func checkKind(data InvoiceData) error {
	switch data.Kind {
	case KindStandard, KindAdvance, KindSettlement, KindSimplified:
		if data.Correction != nil {
			return &ksef.InvalidInputError{Field: "correction", Reason: "only correction invoices may reference a corrected invoice"}
		}
	case KindCorrection, KindCorrectionAdvance:
		c := data.Correction
		if c == nil {
			return &ksef.InvalidInputError{Field: "correction", Reason: "correction invoice requires corrected invoice data"}
		}
		// znany numer KSeF albo jawny brak — nigdy oba, nigdy żaden
		if c.KsefNumber != "" && c.KsefNumberUnknown {
			return &ksef.InvalidInputError{Field: "correction.ksefNumber", Reason: "known number and unknown flag are mutually exclusive"}
		}
		if c.KsefNumber == "" && !c.KsefNumberUnknown {
			return &ksef.InvalidInputError{Field: "correction.ksefNumber", Reason: "either a KSeF number or the unknown flag is required"}
		}
	default:
		return &ksef.InvalidInputError{Field: "kind", Reason: fmt.Sprintf("unknown invoice kind: %q", data.Kind)}
	}
	return nil
}

func checkAnnotations(a AnnotationsData) error {
	if a.Exemption.Applies && a.Exemption.Basis == "" {
		return &ksef.InvalidInputError{Field: "annotations.exemption", Reason: "legal basis is required when exemption applies"}
	}
	if !a.Exemption.Applies && a.Exemption.Basis != "" {
		return &ksef.InvalidInputError{Field: "annotations.exemption", Reason: "legal basis without exemption"}
	}
	if a.Margin.Applies && a.Margin.Scheme == "" {
		return &ksef.InvalidInputError{Field: "annotations.margin", Reason: "margin scheme is required when margin applies"}
	}
	if !a.Margin.Applies && a.Margin.Scheme != "" {
		return &ksef.InvalidInputError{Field: "annotations.margin", Reason: "margin scheme without margin procedure"}
	}
	return nil
}

// computeLines liczy wartości wierszy dokładnie raz i akumuluje koszyki sum.
// Numeracja wierszy jest ciągła od 1.
func computeLines(input []LineData) ([]Line, VatTotals, error) {

	var totals VatTotals
	lines := make([]Line, 0, len(input))

	for i, in := range input {
		if !in.Rate.valid() {
			return nil, totals, &ksef.InvalidInputError{
				Field:  fmt.Sprintf("lines[%d].rate", i),
				Reason: fmt.Sprintf("unknown VAT rate code: %q", in.Rate),
			}
		}
		if in.Quantity.Sign() <= 0 {
			return nil, totals, &ksef.InvalidInputError{
				Field:  fmt.Sprintf("lines[%d].quantity", i),
				Reason: "must be positive",
			}
		}

		net := in.Quantity.Mul(in.UnitPrice).Round(2)
		vat := net.Mul(in.Rate.percentage()).Div(decimal.NewFromInt(100)).Round(2)
		gross := net.Add(vat)

		lines = append(lines, Line{
			Ordinal:   i + 1,
			Name:      in.Name,
			Unit:      in.Unit,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			Net:       net,
			Vat:       vat,
			Gross:     gross,
			Rate:      in.Rate,
			GTU:       in.GTU,
			CN:        in.CN,
			PKWiU:     in.PKWiU,
		})

		accumulate(&totals, in.Rate, net, vat)
		totals.Total = totals.Total.Add(gross)
	}

	return lines, totals, nil
}

func accumulate(t *VatTotals, rate VatRate, net, vat decimal.Decimal) {
	switch rate {
	case RateStandard:
		t.Standard = addAmount(t.Standard, net, vat)
	case RateReduced1:
		t.Reduced1 = addAmount(t.Reduced1, net, vat)
	case RateReduced2:
		t.Reduced2 = addAmount(t.Reduced2, net, vat)
	case RateTaxi:
		t.Taxi = addAmount(t.Taxi, net, vat)
	case RateSpecial:
		t.Special = addAmount(t.Special, net, vat)
	case RateZeroDomestic:
		t.ZeroDomestic = addNet(t.ZeroDomestic, net)
	case RateZeroExport:
		t.ZeroExport = addNet(t.ZeroExport, net)
	case RateExempt:
		t.Exempt = addNet(t.Exempt, net)
	case RateOutOfScope:
		t.OutOfScope = addNet(t.OutOfScope, net)
	case RateReverseCharge:
		t.ReverseCharge = addNet(t.ReverseCharge, net)
	case RateMargin:
		t.Margin = addNet(t.Margin, net)
	}
}

func addAmount(a *Amount, net, vat decimal.Decimal) *Amount {
	if a == nil {
		return &Amount{Net: net, Vat: vat}
	}
	return &Amount{Net: a.Net.Add(net), Vat: a.Vat.Add(vat)}
}

func addNet(a *decimal.Decimal, net decimal.Decimal) *decimal.Decimal {
	if a == nil {
		return &net
	}
	sum := a.Add(net)
	return &sum
}

func toAddress(a AddressData) Address {
	return Address{CountryCode: a.CountryCode, Line1: a.Line1, Line2: a.Line2}
}

func toOptAddress(a *AddressData) *Address {
	if a == nil {
		return nil
	}
	addr := toAddress(*a)
	return &addr
}

func toBuyer(b BuyerData) Buyer {
	return Buyer{
		Identity:      b.Identity,
		NIP:           b.NIP,
		EUCountryCode: b.EUCountryCode,
		VatUE:         b.VatUE,
		CountryCode:   b.CountryCode,
		OtherID:       b.OtherID,
		Name:          b.Name,
		Address:       toOptAddress(b.Address),
	}
}

func toRecipient(r *RecipientData) *Recipient {
	if r == nil {
		return nil
	}
	return &Recipient{NIP: r.NIP, Name: r.Name, Address: toOptAddress(r.Address)}
}

func toAnnotations(a AnnotationsData) Annotations {
	return Annotations{
		CashMethod:    a.CashMethod,
		SelfBilling:   a.SelfBilling,
		ReverseCharge: a.ReverseCharge,
		SplitPayment:  a.SplitPayment,
		Simplified:    a.Simplified,
		Exemption:     Exemption{Applies: a.Exemption.Applies, Basis: a.Exemption.Basis},
		NewTransport:  NewTransport{Applies: a.NewTransport.Applies},
		Margin:        Margin{Applies: a.Margin.Applies, Scheme: a.Margin.Scheme},
	}
}

func toCorrection(c *CorrectionData) *Correction {
	if c == nil {
		return nil
	}
	return &Correction{
		Reason: c.Reason,
		Corrected: CorrectedRef{
			IssueDate:         c.CorrectedIssue,
			Number:            c.CorrectedNumber,
			KsefNumber:        c.KsefNumber,
			KsefNumberUnknown: c.KsefNumberUnknown,
		},
	}
}

func toPayment(p *PaymentData) *Payment {
	if p == nil {
		return nil
	}
	var account *BankAccount
	if p.BankAccount != nil {
		account = &BankAccount{
			Number:   p.BankAccount.Number,
			SWIFT:    p.BankAccount.SWIFT,
			BankName: p.BankAccount.BankName,
		}
	}
	return &Payment{
		Paid:        p.Paid,
		PaidDate:    p.PaidDate,
		DueDate:     p.DueDate,
		Form:        p.Form,
		BankAccount: account,
	}
}
