package invoice

import (
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/alapierre/go-ksef-gateway/ksef"
)

const (
	schemaNamespace = "http://crd.gov.pl/wzor/2023/06/29/12648/"
	formCode        = "FA"
	formSystemCode  = "FA (2)"
	schemaVersion   = "1-0E"
	formVariant     = "2"
)

// Serialize zapisuje dokument do XML. Kolejność grup i elementów jest stała
// i stanowi część kontraktu zewnętrznego — nie wolno jej zmieniać. Znaki
// specjalne XML w wartościach tekstowych escapuje etree.
func Serialize(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, &ksef.InvalidInputError{Field: "document", Reason: "must not be nil"}
	}

	x := etree.NewDocument()
	x.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := x.CreateElement("Faktura")
	root.CreateAttr("xmlns", schemaNamespace)

	writeHeader(root, doc.Header)
	writeSeller(root, doc.Seller)
	writeBuyer(root, doc.Buyer)
	if doc.Recipient != nil {
		writeRecipient(root, *doc.Recipient)
	}
	writeDetails(root, doc.Details)

	return x.WriteToBytes()
}

func writeHeader(parent *etree.Element, h Header) {
	e := parent.CreateElement("Naglowek")

	kod := e.CreateElement("KodFormularza")
	kod.CreateAttr("kodSystemowy", formSystemCode)
	kod.CreateAttr("wersjaSchemy", schemaVersion)
	kod.SetText(formCode)

	e.CreateElement("WariantFormularza").SetText(formVariant)
	e.CreateElement("DataWytworzeniaFa").SetText(h.CreatedAt.UTC().Format(time.RFC3339))
	if h.SystemInfo != "" {
		e.CreateElement("SystemInfo").SetText(h.SystemInfo)
	}
}

func writeAddress(parent *etree.Element, a Address) {
	e := parent.CreateElement("Adres")
	e.CreateElement("KodKraju").SetText(a.CountryCode)
	e.CreateElement("AdresL1").SetText(a.Line1)
	if a.Line2 != "" {
		e.CreateElement("AdresL2").SetText(a.Line2)
	}
}

func writeSeller(parent *etree.Element, s Seller) {
	e := parent.CreateElement("Podmiot1")

	id := e.CreateElement("DaneIdentyfikacyjne")
	id.CreateElement("NIP").SetText(s.NIP)
	id.CreateElement("Nazwa").SetText(s.Name)

	writeAddress(e, s.Address)
}

// writeBuyer emituje dokładnie jedną gałąź grupy wyboru identyfikacji —
// Build gwarantuje, że pola spoza wybranej gałęzi są puste.
func writeBuyer(parent *etree.Element, b Buyer) {
	e := parent.CreateElement("Podmiot2")

	id := e.CreateElement("DaneIdentyfikacyjne")
	switch b.Identity {
	case BuyerByNIP:
		id.CreateElement("NIP").SetText(b.NIP)
	case BuyerByVatUE:
		id.CreateElement("KodUE").SetText(b.EUCountryCode)
		id.CreateElement("NrVatUE").SetText(b.VatUE)
	case BuyerByOtherID:
		id.CreateElement("KodKraju").SetText(b.CountryCode)
		id.CreateElement("NrID").SetText(b.OtherID)
	case BuyerNoID:
		id.CreateElement("BrakID").SetText("1")
	}
	id.CreateElement("Nazwa").SetText(b.Name)

	if b.Address != nil {
		writeAddress(e, *b.Address)
	}
}

func writeRecipient(parent *etree.Element, r Recipient) {
	e := parent.CreateElement("Podmiot3")

	id := e.CreateElement("DaneIdentyfikacyjne")
	if r.NIP != "" {
		id.CreateElement("NIP").SetText(r.NIP)
	} else {
		id.CreateElement("BrakID").SetText("1")
	}
	id.CreateElement("Nazwa").SetText(r.Name)

	if r.Address != nil {
		writeAddress(e, *r.Address)
	}
	e.CreateElement("Rola").SetText("4") // odbiorca dodatkowy
}

func writeDetails(parent *etree.Element, d Details) {
	e := parent.CreateElement("Fa")

	e.CreateElement("KodWaluty").SetText(d.Currency)
	e.CreateElement("P_1").SetText(d.IssueDate.Format("2006-01-02"))
	e.CreateElement("P_2").SetText(d.Number)
	if d.SaleDate != nil {
		e.CreateElement("P_6").SetText(d.SaleDate.Format("2006-01-02"))
	}

	writeTotals(e, d.Totals)
	writeAnnotations(e, d.Annotations)

	e.CreateElement("RodzajFaktury").SetText(string(d.Kind))
	if d.Correction != nil {
		writeCorrection(e, *d.Correction)
	}

	for _, line := range d.Lines {
		writeLine(e, line)
	}

	if d.Payment != nil {
		writePayment(e, *d.Payment)
	}
}

// writeTotals emituje koszyki w ustalonej kolejności schematu. Koszyk
// nieobecny (nil) jest pomijany w całości; wewnątrz obecnego koszyka oba
// pola są obowiązkowe.
func writeTotals(e *etree.Element, t VatTotals) {
	writePair(e, "P_13_1", "P_14_1", t.Standard)
	writePair(e, "P_13_2", "P_14_2", t.Reduced1)
	writePair(e, "P_13_3", "P_14_3", t.Reduced2)
	writePair(e, "P_13_4", "P_14_4", t.Taxi)
	writePair(e, "P_13_5", "P_14_5", t.Special)
	writeNet(e, "P_13_6_1", t.ZeroDomestic)
	writeNet(e, "P_13_6_2", t.ZeroExport)
	writeNet(e, "P_13_7", t.Exempt)
	writeNet(e, "P_13_8", t.OutOfScope)
	writeNet(e, "P_13_9", t.ReverseCharge)
	writeNet(e, "P_13_10", t.Margin)
	e.CreateElement("P_15").SetText(money(t.Total))
}

func writePair(e *etree.Element, netTag, vatTag string, a *Amount) {
	if a == nil {
		return
	}
	e.CreateElement(netTag).SetText(money(a.Net))
	e.CreateElement(vatTag).SetText(money(a.Vat))
}

func writeNet(e *etree.Element, tag string, v *decimal.Decimal) {
	if v == nil {
		return
	}
	e.CreateElement(tag).SetText(money(*v))
}

func writeAnnotations(parent *etree.Element, a Annotations) {
	e := parent.CreateElement("Adnotacje")

	e.CreateElement("P_16").SetText(flag(a.CashMethod))
	e.CreateElement("P_17").SetText(flag(a.SelfBilling))
	e.CreateElement("P_18").SetText(flag(a.ReverseCharge))
	e.CreateElement("P_18A").SetText(flag(a.SplitPayment))

	// grupa wyboru: zwolnienie z podstawą albo jawny brak
	zw := e.CreateElement("Zwolnienie")
	if a.Exemption.Applies {
		zw.CreateElement("P_19").SetText("1")
		zw.CreateElement("P_19A").SetText(a.Exemption.Basis)
	} else {
		zw.CreateElement("P_19N").SetText("1")
	}

	// grupa wyboru: nowy środek transportu albo jawny brak
	nst := e.CreateElement("NoweSrodkiTransportu")
	if a.NewTransport.Applies {
		nst.CreateElement("P_22").SetText("1")
	} else {
		nst.CreateElement("P_22N").SetText("1")
	}

	e.CreateElement("P_23").SetText(flag(a.Simplified))

	// grupa wyboru: procedura marży ze wskazanym wariantem albo jawny brak
	pm := e.CreateElement("PMarzy")
	if a.Margin.Applies {
		pm.CreateElement("P_PMarzy").SetText("1")
		pm.CreateElement(marginTag(a.Margin.Scheme)).SetText("1")
	} else {
		pm.CreateElement("P_PMarzyN").SetText("1")
	}
}

func marginTag(s MarginScheme) string {
	switch s {
	case MarginTravel:
		return "P_PMarzy_2"
	case MarginUsedGoods:
		return "P_PMarzy_3_1"
	case MarginArt:
		return "P_PMarzy_3_2"
	case MarginCollectible:
		return "P_PMarzy_3_3"
	}
	return "P_PMarzy_3_1"
}

// writeCorrection koduje odniesienie do korygowanej faktury: dokładnie jedna
// z gałęzi NrKSeFFaKorygowanej / NrKSeFN.
func writeCorrection(parent *etree.Element, c Correction) {
	if c.Reason != "" {
		parent.CreateElement("PrzyczynaKorekty").SetText(c.Reason)
	}

	e := parent.CreateElement("DaneFaKorygowanej")
	e.CreateElement("DataWystFaKorygowanej").SetText(c.Corrected.IssueDate.Format("2006-01-02"))
	e.CreateElement("NrFaKorygowanej").SetText(c.Corrected.Number)
	if c.Corrected.KsefNumberUnknown {
		e.CreateElement("NrKSeFN").SetText("1")
	} else {
		e.CreateElement("NrKSeFFaKorygowanej").SetText(c.Corrected.KsefNumber)
	}
}

func writeLine(parent *etree.Element, l Line) {
	e := parent.CreateElement("FaWiersz")

	e.CreateElement("NrWierszaFa").SetText(strconv.Itoa(l.Ordinal))
	e.CreateElement("P_7").SetText(l.Name)
	if l.CN != "" {
		e.CreateElement("CN").SetText(l.CN)
	}
	if l.PKWiU != "" {
		e.CreateElement("PKWiU").SetText(l.PKWiU)
	}
	e.CreateElement("P_8A").SetText(l.Unit)
	e.CreateElement("P_8B").SetText(l.Quantity.String())
	e.CreateElement("P_9A").SetText(money(l.UnitPrice))
	e.CreateElement("P_11").SetText(money(l.Net))
	e.CreateElement("P_11Vat").SetText(money(l.Vat))
	e.CreateElement("P_12").SetText(rateText(l.Rate))
	if l.GTU != "" {
		e.CreateElement("GTU").SetText(l.GTU)
	}
}

func rateText(r VatRate) string {
	switch r {
	case RateZeroExport:
		return "0"
	case RateMargin:
		return "np"
	}
	return string(r)
}

func writePayment(parent *etree.Element, p Payment) {
	e := parent.CreateElement("Platnosc")

	if p.Paid {
		e.CreateElement("Zaplacono").SetText("1")
		if p.PaidDate != nil {
			e.CreateElement("DataZaplaty").SetText(p.PaidDate.Format("2006-01-02"))
		}
	} else if p.DueDate != nil {
		t := e.CreateElement("TerminPlatnosci")
		t.CreateElement("Termin").SetText(p.DueDate.Format("2006-01-02"))
	}

	if p.Form != 0 {
		e.CreateElement("FormaPlatnosci").SetText(strconv.Itoa(int(p.Form)))
	}

	if p.BankAccount != nil {
		r := e.CreateElement("RachunekBankowy")
		r.CreateElement("NrRB").SetText(p.BankAccount.Number)
		if p.BankAccount.SWIFT != "" {
			r.CreateElement("SWIFT").SetText(p.BankAccount.SWIFT)
		}
		if p.BankAccount.BankName != "" {
			r.CreateElement("NazwaBanku").SetText(p.BankAccount.BankName)
		}
	}
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "2"
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
