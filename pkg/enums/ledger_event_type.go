package enums

// LedgerEventType names a farmer ledger movement. Only sale credits exist today.
type LedgerEventType string

const LedgerEventTypeSaleCredit LedgerEventType = "sale_credit"

var ledgerEventTypes = values[LedgerEventType]{LedgerEventTypeSaleCredit}

func (t LedgerEventType) IsValid() bool { return ledgerEventTypes.has(t) }

func ParseLedgerEventType(value string) (LedgerEventType, error) {
	return ledgerEventTypes.parse("ledger event type", value)
}
