package purchase_order

import "purchasing/internal/core/numerator"

// NumberPrefix is the document number prefix, e.g. PO-2026-00001.
const NumberPrefix = "PO"

// NumeratorStrategy defines how purchase order numbers are generated.
// Purchase orders are internal documents, so gaps after a restart are acceptable.
var NumeratorStrategy = numerator.StrategyCached
