package market

// Trade types
const (
	TradeTypeImport   = "IMPORT"
	TradeTypeExport   = "EXPORT"
	TradeTypeExchange = "EXCHANGE"
)

// Supply levels, from thinnest to deepest
const (
	SupplyScarce   = "SCARCE"
	SupplyLimited  = "LIMITED"
	SupplyModerate = "MODERATE"
	SupplyHigh     = "HIGH"
	SupplyAbundant = "ABUNDANT"
)

// TradeGood is one good's listing at a market
type TradeGood struct {
	Symbol        string
	Type          string
	TradeVolume   int
	Supply        string
	Activity      string
	PurchasePrice int
	SellPrice     int
}
