package layout

import (
	"fmt"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

// BuiltinLayouts provides the layout trees for the tightly specified
// financial document kinds. Binding paths are the mapper contract for
// these kinds.
func BuiltinLayouts() Provider {
	return ProviderFunc(func(kind docgen.DocumentKind) (Document, error) {
		switch docgen.NormalizeKind(kind) {
		case docgen.KindInvoice:
			return InvoiceLayout(), nil
		case docgen.KindPurchaseOrder:
			return PurchaseOrderLayout(), nil
		case docgen.KindReceipt:
			return ReceiptLayout(), nil
		default:
			return Document{}, docgen.NewError(docgen.KindNotFound,
				fmt.Sprintf("no structured layout for kind %q", kind), nil)
		}
	})
}

// InvoiceLayout is the standard funeral services invoice. The payment
// instructions region renders only while a balance remains due.
func InvoiceLayout() Document {
	return Document{
		Title: "Invoice",
		Elements: []Element{
			Heading{Bind: "firmName", Level: 1},
			Text{Bind: "firmAddress", Optional: true},
			Spacer{Height: 6},
			Heading{Text: "Invoice", Level: 2},
			KeyValue{Rows: []KeyValueRow{
				{Label: "Invoice number", Bind: "invoiceNumber"},
				{Label: "Issued", Bind: "issuedOn"},
				{Label: "Billed to", Bind: "billedTo"},
				{Label: "Service for", Bind: "decedentName", Optional: true},
			}},
			Rule{},
			Table{
				Bind: "lineItems",
				Columns: []Column{
					{Header: "Description", Bind: "description"},
					{Header: "Qty", Bind: "quantity", Width: 20, Align: AlignCenter},
					{Header: "Amount", Bind: "amount", Width: 35, Align: AlignRight, Currency: true},
				},
			},
			KeyValue{Rows: []KeyValueRow{
				{Label: "Subtotal", Bind: "subtotal", Currency: true},
				{Label: "Tax", Bind: "tax", Currency: true},
				{Label: "Total", Bind: "total", Currency: true, Bold: true},
			}},
			Region{
				Name: "payment-instructions",
				When: Predicate{Path: "balanceDue", Op: OpNonZero},
				Elements: []Element{
					Spacer{Height: 6},
					Rule{},
					KeyValue{Rows: []KeyValueRow{
						{Label: "Balance due", Bind: "balanceDue", Currency: true, Bold: true},
					}},
					Text{Bind: "paymentInstructions", Optional: true},
					Text{Bind: "paymentLink", Style: Style{Italic: true}, Optional: true},
				},
			},
			Region{
				Name: "paid-in-full",
				When: Predicate{Path: "paidInFull", Op: OpTruthy},
				Elements: []Element{
					Spacer{Height: 6},
					Text{Text: "Paid in full. Thank you.", Align: AlignCenter, Style: Style{Bold: true}},
				},
			},
		},
	}
}

// PurchaseOrderLayout is the supplier purchase order.
func PurchaseOrderLayout() Document {
	return Document{
		Title: "Purchase Order",
		Elements: []Element{
			Heading{Bind: "firmName", Level: 1},
			Heading{Text: "Purchase Order", Level: 2},
			KeyValue{Rows: []KeyValueRow{
				{Label: "PO number", Bind: "orderNumber"},
				{Label: "Date", Bind: "orderedOn"},
				{Label: "Supplier", Bind: "supplierName"},
				{Label: "Ship to", Bind: "shipTo", Optional: true},
			}},
			Rule{},
			Table{
				Bind: "lineItems",
				Columns: []Column{
					{Header: "Item", Bind: "sku", Width: 35},
					{Header: "Description", Bind: "description"},
					{Header: "Qty", Bind: "quantity", Width: 20, Align: AlignCenter},
					{Header: "Unit price", Bind: "unitPrice", Width: 30, Align: AlignRight, Currency: true},
					{Header: "Amount", Bind: "amount", Width: 30, Align: AlignRight, Currency: true},
				},
			},
			KeyValue{Rows: []KeyValueRow{
				{Label: "Total", Bind: "total", Currency: true, Bold: true},
			}},
			Region{
				Name: "delivery-notes",
				When: Predicate{Path: "deliveryNotes", Op: OpPresent},
				Elements: []Element{
					Spacer{Height: 4},
					Text{Text: "Delivery notes", Style: Style{Bold: true}},
					Text{Bind: "deliveryNotes"},
				},
			},
		},
	}
}

// ReceiptLayout acknowledges a payment against an invoice.
func ReceiptLayout() Document {
	return Document{
		Title: "Receipt",
		Elements: []Element{
			Heading{Bind: "firmName", Level: 1},
			Heading{Text: "Payment Receipt", Level: 2},
			KeyValue{Rows: []KeyValueRow{
				{Label: "Receipt number", Bind: "receiptNumber"},
				{Label: "Received on", Bind: "receivedOn"},
				{Label: "Received from", Bind: "payerName"},
				{Label: "Applied to invoice", Bind: "invoiceNumber", Optional: true},
				{Label: "Payment method", Bind: "method", Optional: true},
			}},
			Rule{},
			KeyValue{Rows: []KeyValueRow{
				{Label: "Amount received", Bind: "amount", Currency: true, Bold: true},
				{Label: "Remaining balance", Bind: "balanceDue", Currency: true},
			}},
			Region{
				Name: "payment-link",
				When: Predicate{Path: "balanceDue", Op: OpNonZero},
				Elements: []Element{
					Spacer{Height: 4},
					Text{Bind: "paymentLink", Style: Style{Italic: true}, Optional: true},
				},
			},
		},
	}
}
