package persistence

import "time"

// ShipNavModel represents the ship_navs table
type ShipNavModel struct {
	ShipSymbol     string    `gorm:"column:ship_symbol;primaryKey"`
	SystemSymbol   string    `gorm:"column:system_symbol;not null;index"`
	WaypointSymbol string    `gorm:"column:waypoint_symbol;not null"`
	Status         string    `gorm:"column:status;not null"`
	FlightMode     string    `gorm:"column:flight_mode;not null"`
	DepartureTime  time.Time `gorm:"column:departure_time"`
	Arrival        time.Time `gorm:"column:arrival"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (ShipNavModel) TableName() string {
	return "ship_navs"
}

// ShipFuelModel represents the ship_fuels table
type ShipFuelModel struct {
	ShipSymbol string `gorm:"column:ship_symbol;primaryKey"`
	Current    int    `gorm:"column:current;not null"`
	Capacity   int    `gorm:"column:capacity;not null"`
}

func (ShipFuelModel) TableName() string {
	return "ship_fuels"
}

// ShipCargoModel represents the ship_cargo table. One sentinel row per ship
// (good_symbol = "") holds capacity and total units so capacity can be read
// even when the hold is empty; one row per held good carries its units.
type ShipCargoModel struct {
	ShipSymbol string `gorm:"column:ship_symbol;primaryKey"`
	GoodSymbol string `gorm:"column:good_symbol;primaryKey"`
	Units      int    `gorm:"column:units;not null"`
	Capacity   int    `gorm:"column:capacity;not null;default:0"`
	TotalUnits int    `gorm:"column:total_units;not null;default:0"`
}

func (ShipCargoModel) TableName() string {
	return "ship_cargo"
}

// ShipCooldownModel represents the ship_cooldowns table
type ShipCooldownModel struct {
	ShipSymbol       string    `gorm:"column:ship_symbol;primaryKey"`
	RemainingSeconds int       `gorm:"column:remaining_seconds;not null"`
	Expiration       time.Time `gorm:"column:expiration"`
}

func (ShipCooldownModel) TableName() string {
	return "ship_cooldowns"
}

// ShipRegistrationModel represents the ship_registrations table
type ShipRegistrationModel struct {
	ShipSymbol string `gorm:"column:ship_symbol;primaryKey"`
	Role       string `gorm:"column:role;not null;index"`
	Name       string `gorm:"column:name"`
}

func (ShipRegistrationModel) TableName() string {
	return "ship_registrations"
}

// ShipMountModel represents the ship_mounts table
type ShipMountModel struct {
	ShipSymbol string `gorm:"column:ship_symbol;primaryKey"`
	Symbol     string `gorm:"column:symbol;primaryKey"`
	Strength   int    `gorm:"column:strength"`
}

func (ShipMountModel) TableName() string {
	return "ship_mounts"
}

// WaypointModel represents the waypoints table
type WaypointModel struct {
	Symbol       string  `gorm:"column:symbol;primaryKey"`
	SystemSymbol string  `gorm:"column:system_symbol;not null;index"`
	Type         string  `gorm:"column:type;not null"`
	X            float64 `gorm:"column:x;not null"`
	Y            float64 `gorm:"column:y;not null"`
	SyncedAt     time.Time `gorm:"column:synced_at"`
}

func (WaypointModel) TableName() string {
	return "waypoints"
}

// WaypointTraitModel represents the waypoint_traits table
type WaypointTraitModel struct {
	WaypointSymbol string `gorm:"column:waypoint_symbol;primaryKey"`
	Symbol         string `gorm:"column:symbol;primaryKey"`
}

func (WaypointTraitModel) TableName() string {
	return "waypoint_traits"
}

// WaypointDistanceModel represents the waypoint_distances table.
// Distances are symmetric; lookups accept either direction.
type WaypointDistanceModel struct {
	Src  string  `gorm:"column:src;primaryKey"`
	Dst  string  `gorm:"column:dst;primaryKey"`
	Dist float64 `gorm:"column:dist;not null"`
}

func (WaypointDistanceModel) TableName() string {
	return "waypoint_distances"
}

// TradeGoodSnapshotModel represents the trade_good_snapshots table.
// Append-only history; "current" means latest per (market_symbol, good_symbol).
type TradeGoodSnapshotModel struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement"`
	MarketSymbol  string    `gorm:"column:market_symbol;not null;index:idx_snapshot_market_good"`
	GoodSymbol    string    `gorm:"column:good_symbol;not null;index:idx_snapshot_market_good"`
	Type          string    `gorm:"column:type;not null"`
	TradeVolume   int       `gorm:"column:trade_volume;not null"`
	Supply        string    `gorm:"column:supply"`
	Activity      string    `gorm:"column:activity"`
	PurchasePrice int       `gorm:"column:purchase_price;not null"`
	SellPrice     int       `gorm:"column:sell_price;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;index"`
}

func (TradeGoodSnapshotModel) TableName() string {
	return "trade_good_snapshots"
}

// TransactionModel represents the transactions table (append-only log of
// purchase and sale events as returned by the game).
type TransactionModel struct {
	ID             string    `gorm:"column:id;primaryKey;size:36"`
	ShipSymbol     string    `gorm:"column:ship_symbol;not null;index:idx_tx_ship_time"`
	WaypointSymbol string    `gorm:"column:waypoint_symbol;not null"`
	TradeSymbol    string    `gorm:"column:trade_symbol;not null"`
	Type           string    `gorm:"column:type;not null"` // PURCHASE or SELL
	Units          int       `gorm:"column:units;not null"`
	PricePerUnit   int       `gorm:"column:price_per_unit;not null"`
	TotalPrice     int       `gorm:"column:total_price;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index:idx_tx_ship_time"`
}

func (TransactionModel) TableName() string {
	return "transactions"
}

// TradeModel represents the trades table (one row per completed trade task)
type TradeModel struct {
	ID          string    `gorm:"column:id;primaryKey;size:36"`
	ShipSymbol  string    `gorm:"column:ship_symbol;not null;index"`
	Controller  string    `gorm:"column:controller;not null;index"`
	TradeSymbol string    `gorm:"column:trade_symbol;not null"`
	Source      string    `gorm:"column:source;not null"`
	Sink        string    `gorm:"column:sink;not null"`
	Units       int       `gorm:"column:units;not null"`
	Profit      int       `gorm:"column:profit;not null"`
	StartedAt   time.Time `gorm:"column:started_at;not null"`
	EndedAt     time.Time `gorm:"column:ended_at;not null"`
}

func (TradeModel) TableName() string {
	return "trades"
}

// YieldModel represents the yields table (per-extraction yield records)
type YieldModel struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ShipSymbol string    `gorm:"column:ship_symbol;not null;index"`
	GoodSymbol string    `gorm:"column:good_symbol;not null"`
	Units      int       `gorm:"column:units;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index"`
}

func (YieldModel) TableName() string {
	return "yields"
}

// YieldSaleModel represents the yield_sales table (one row per completed haul)
type YieldSaleModel struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ShipSymbol string    `gorm:"column:ship_symbol;not null;index"`
	Controller string    `gorm:"column:controller"`
	Units      int       `gorm:"column:units;not null"`
	Profit     int       `gorm:"column:profit;not null"`
	StartedAt  time.Time `gorm:"column:started_at;not null"`
	EndedAt    time.Time `gorm:"column:ended_at;not null"`
}

func (YieldSaleModel) TableName() string {
	return "yield_sales"
}

// ShipyardShipModel represents the shipyard_ships table
type ShipyardShipModel struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ShipyardSymbol string    `gorm:"column:shipyard_symbol;not null;index"`
	Type           string    `gorm:"column:type;not null"`
	Name           string    `gorm:"column:name"`
	PurchasePrice  int       `gorm:"column:purchase_price;not null"`
	Supply         string    `gorm:"column:supply"`
	FrameSymbol    string    `gorm:"column:frame_symbol"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index"`
}

func (ShipyardShipModel) TableName() string {
	return "shipyard_ships"
}

// ShipyardModuleModel represents the shipyard_modules table
type ShipyardModuleModel struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ShipType  string    `gorm:"column:ship_type;not null;index"`
	Symbol    string    `gorm:"column:symbol;not null"`
	Name      string    `gorm:"column:name"`
	Capacity  int       `gorm:"column:capacity"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (ShipyardModuleModel) TableName() string {
	return "shipyard_modules"
}

// ShipLockModel represents the ship_locks table: at most one row per ship.
// A NULL controller with priority -1 means the ship is free.
type ShipLockModel struct {
	ShipSymbol string  `gorm:"column:ship_symbol;primaryKey"`
	Controller *string `gorm:"column:controller;index"`
	Priority   int     `gorm:"column:priority;not null;default:-1"`
	Blocked    bool    `gorm:"column:blocked;not null;default:false"`
}

func (ShipLockModel) TableName() string {
	return "ship_locks"
}

// ShipRequestModel represents the ship_requests table, keyed on
// (ship_symbol, controller) so re-requests refresh the existing entry.
type ShipRequestModel struct {
	ShipSymbol string    `gorm:"column:ship_symbol;primaryKey"`
	Controller string    `gorm:"column:controller;primaryKey"`
	Priority   int       `gorm:"column:priority;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (ShipRequestModel) TableName() string {
	return "ship_requests"
}

// ExcavatorGoodModel represents the excavator_goods table: the whitelist of
// goods extraction keeps. Anything else is jettisoned on extraction.
type ExcavatorGoodModel struct {
	Symbol string `gorm:"column:symbol;primaryKey"`
}

func (ExcavatorGoodModel) TableName() string {
	return "excavator_goods"
}

// RequestLogModel represents the request_logs table
type RequestLogModel struct {
	ID          string    `gorm:"column:id;primaryKey;size:36"`
	URL         string    `gorm:"column:url;not null"`
	StatusCode  int       `gorm:"column:status_code;not null"`
	RequestBody *string   `gorm:"column:request_body;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index"`
}

func (RequestLogModel) TableName() string {
	return "request_logs"
}
