package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetShip retrieves a full ship snapshot
func (c *Client) GetShip(ctx context.Context, ship string) (*ShipData, error) {
	var out ShipData
	if err := c.call(ctx, "GET", fmt.Sprintf("/my/ships/%s", ship), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get ship %s: %w", ship, err)
	}
	return &out, nil
}

// ListShips retrieves all ships for the agent, following pagination
func (c *Client) ListShips(ctx context.Context) ([]ShipData, error) {
	var all []ShipData
	page := 1
	limit := 20
	for {
		status, body, err := c.request(ctx, "GET", fmt.Sprintf("/my/ships?page=%d&limit=%d", page, limit), nil)
		if err != nil {
			return nil, err
		}
		if status != 200 {
			return nil, fmt.Errorf("failed to list ships (page %d, status %d)", page, status)
		}
		var envelope struct {
			Data []ShipData     `json:"data"`
			Meta PaginationMeta `json:"meta"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ship list: %w", err)
		}
		all = append(all, envelope.Data...)
		if len(envelope.Data) == 0 || len(all) >= envelope.Meta.Total {
			return all, nil
		}
		page++
	}
}

// GetNav retrieves just the nav component
func (c *Client) GetNav(ctx context.Context, ship string) (*NavData, error) {
	var out NavData
	if err := c.call(ctx, "GET", fmt.Sprintf("/my/ships/%s/nav", ship), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get nav for %s: %w", ship, err)
	}
	return &out, nil
}

// GetCargo retrieves just the cargo component
func (c *Client) GetCargo(ctx context.Context, ship string) (*CargoData, error) {
	var out CargoData
	if err := c.call(ctx, "GET", fmt.Sprintf("/my/ships/%s/cargo", ship), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get cargo for %s: %w", ship, err)
	}
	return &out, nil
}

// GetCooldown retrieves just the cooldown component. The endpoint returns no
// content when the ship has no active cooldown.
func (c *Client) GetCooldown(ctx context.Context, ship string) (*CooldownData, error) {
	status, body, err := c.request(ctx, "GET", fmt.Sprintf("/my/ships/%s/cooldown", ship), nil)
	if err != nil {
		return nil, err
	}
	if status == 204 {
		return &CooldownData{}, nil
	}
	if status != 200 {
		return nil, fmt.Errorf("failed to get cooldown for %s (status %d)", ship, status)
	}
	var envelope struct {
		Data CooldownData `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cooldown: %w", err)
	}
	return &envelope.Data, nil
}

// Dock docks the ship at its current waypoint
func (c *Client) Dock(ctx context.Context, ship string) (*NavData, error) {
	var out struct {
		Nav NavData `json:"nav"`
	}
	if err := c.call(ctx, "POST", fmt.Sprintf("/my/ships/%s/dock", ship), map[string]interface{}{}, &out); err != nil {
		return nil, fmt.Errorf("failed to dock %s: %w", ship, err)
	}
	return &out.Nav, nil
}

// Orbit puts the ship into orbit of its current waypoint
func (c *Client) Orbit(ctx context.Context, ship string) (*NavData, error) {
	var out struct {
		Nav NavData `json:"nav"`
	}
	if err := c.call(ctx, "POST", fmt.Sprintf("/my/ships/%s/orbit", ship), map[string]interface{}{}, &out); err != nil {
		return nil, fmt.Errorf("failed to orbit %s: %w", ship, err)
	}
	return &out.Nav, nil
}

// SetFlightMode patches the ship's flight mode
func (c *Client) SetFlightMode(ctx context.Context, ship, mode string) (*NavData, error) {
	var out NavData
	body := map[string]string{"flightMode": mode}
	if err := c.call(ctx, "PATCH", fmt.Sprintf("/my/ships/%s/nav", ship), body, &out); err != nil {
		return nil, fmt.Errorf("failed to set flight mode for %s: %w", ship, err)
	}
	return &out, nil
}

// Navigate sets the ship on course for a waypoint in the same system
func (c *Client) Navigate(ctx context.Context, ship, waypoint string) (*NavigateResult, error) {
	var out NavigateResult
	body := map[string]string{"waypointSymbol": waypoint}
	if err := c.call(ctx, "POST", fmt.Sprintf("/my/ships/%s/navigate", ship), body, &out); err != nil {
		return nil, fmt.Errorf("failed to navigate %s to %s: %w", ship, waypoint, err)
	}
	return &out, nil
}

// Refuel refuels the ship at its current waypoint. units nil means fill up.
func (c *Client) Refuel(ctx context.Context, ship string, units *int, fromCargo bool) (*RefuelResult, error) {
	body := map[string]interface{}{}
	if units != nil {
		body["units"] = *units
	}
	if fromCargo {
		body["fromCargo"] = true
	}
	var out RefuelResult
	if err := c.call(ctx, "POST", fmt.Sprintf("/my/ships/%s/refuel", ship), body, &out); err != nil {
		return nil, fmt.Errorf("failed to refuel %s: %w", ship, err)
	}
	return &out, nil
}

// Extract mines the ship's current waypoint
func (c *Client) Extract(ctx context.Context, ship string) (*ExtractionResult, error) {
	return c.extractionCall(ctx, ship, "extract", "extraction")
}

// Siphon siphons the ship's current waypoint
func (c *Client) Siphon(ctx context.Context, ship string) (*ExtractionResult, error) {
	return c.extractionCall(ctx, ship, "siphon", "siphon")
}

// extractionCall handles extract and siphon, which differ only in the field
// the yield arrives under.
func (c *Client) extractionCall(ctx context.Context, ship, action, yieldField string) (*ExtractionResult, error) {
	var raw map[string]json.RawMessage
	if err := c.call(ctx, "POST", fmt.Sprintf("/my/ships/%s/%s", ship, action), map[string]interface{}{}, &raw); err != nil {
		return nil, fmt.Errorf("failed to %s with %s: %w", action, ship, err)
	}
	var out ExtractionResult
	if cargoRaw, ok := raw["cargo"]; ok {
		if err := json.Unmarshal(cargoRaw, &out.Cargo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s cargo: %w", action, err)
		}
	}
	if cdRaw, ok := raw["cooldown"]; ok {
		if err := json.Unmarshal(cdRaw, &out.Cooldown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s cooldown: %w", action, err)
		}
	}
	if yieldRaw, ok := raw[yieldField]; ok {
		var wrapper struct {
			Yield YieldData `json:"yield"`
		}
		if err := json.Unmarshal(yieldRaw, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s yield: %w", action, err)
		}
		out.Yield = wrapper.Yield
	}
	return &out, nil
}

// Jettison dumps units of a good overboard
func (c *Client) Jettison(ctx context.Context, ship, good string, units int) (*CargoData, error) {
	var out struct {
		Cargo CargoData `json:"cargo"`
	}
	body := map[string]interface{}{"symbol": good, "units": units}
	if err := c.call(ctx, "POST", fmt.Sprintf("/my/ships/%s/jettison", ship), body, &out); err != nil {
		return nil, fmt.Errorf("failed to jettison from %s: %w", ship, err)
	}
	return &out.Cargo, nil
}

// Purchase buys units of a good at the ship's current market
func (c *Client) Purchase(ctx context.Context, ship, good string, units int) (*TradeResult, error) {
	var out TradeResult
	body := map[string]interface{}{"symbol": good, "units": units}
	if err := c.call(ctx, "POST", fmt.Sprintf("/my/ships/%s/purchase", ship), body, &out); err != nil {
		return nil, fmt.Errorf("failed to purchase %s with %s: %w", good, ship, err)
	}
	return &out, nil
}

// Sell sells units of a good at the ship's current market
func (c *Client) Sell(ctx context.Context, ship, good string, units int) (*TradeResult, error) {
	var out TradeResult
	body := map[string]interface{}{"symbol": good, "units": units}
	if err := c.call(ctx, "POST", fmt.Sprintf("/my/ships/%s/sell", ship), body, &out); err != nil {
		return nil, fmt.Errorf("failed to sell %s with %s: %w", good, ship, err)
	}
	return &out, nil
}

// Transfer moves cargo from one ship to another at the same waypoint.
// Returns the source ship's updated cargo.
func (c *Client) Transfer(ctx context.Context, fromShip, toShip, good string, units int) (*CargoData, error) {
	var out struct {
		Cargo CargoData `json:"cargo"`
	}
	body := map[string]interface{}{"tradeSymbol": good, "units": units, "shipSymbol": toShip}
	if err := c.call(ctx, "POST", fmt.Sprintf("/my/ships/%s/transfer", fromShip), body, &out); err != nil {
		return nil, fmt.Errorf("failed to transfer %s from %s to %s: %w", good, fromShip, toShip, err)
	}
	return &out.Cargo, nil
}

// PurchaseShip buys a new ship at a shipyard
func (c *Client) PurchaseShip(ctx context.Context, shipType, shipyardWaypoint string) (*ShipPurchaseResult, error) {
	var out ShipPurchaseResult
	body := map[string]interface{}{"shipType": shipType, "waypointSymbol": shipyardWaypoint}
	if err := c.call(ctx, "POST", "/my/ships", body, &out); err != nil {
		return nil, fmt.Errorf("failed to purchase %s at %s: %w", shipType, shipyardWaypoint, err)
	}
	return &out, nil
}
