package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// ListWaypoints retrieves every waypoint in a system, following pagination
func (c *Client) ListWaypoints(ctx context.Context, system string) ([]WaypointData, error) {
	var all []WaypointData
	page := 1
	limit := 20
	for {
		status, body, err := c.request(ctx, "GET", fmt.Sprintf("/systems/%s/waypoints?page=%d&limit=%d", system, page, limit), nil)
		if err != nil {
			return nil, err
		}
		if status != 200 {
			return nil, fmt.Errorf("failed to list waypoints in %s (page %d, status %d)", system, page, status)
		}
		var envelope struct {
			Data []WaypointData `json:"data"`
			Meta PaginationMeta `json:"meta"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to unmarshal waypoint list: %w", err)
		}
		all = append(all, envelope.Data...)
		if len(envelope.Data) == 0 || len(all) >= envelope.Meta.Total {
			return all, nil
		}
		page++
	}
}

// GetMarket retrieves the market snapshot at a waypoint. Trade goods are only
// present when the agent has a ship at the waypoint.
func (c *Client) GetMarket(ctx context.Context, system, waypoint string) (*MarketData, error) {
	var out MarketData
	if err := c.call(ctx, "GET", fmt.Sprintf("/systems/%s/waypoints/%s/market", system, waypoint), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get market at %s: %w", waypoint, err)
	}
	return &out, nil
}

// GetShipyard retrieves the shipyard snapshot at a waypoint
func (c *Client) GetShipyard(ctx context.Context, system, waypoint string) (*ShipyardData, error) {
	var out ShipyardData
	if err := c.call(ctx, "GET", fmt.Sprintf("/systems/%s/waypoints/%s/shipyard", system, waypoint), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get shipyard at %s: %w", waypoint, err)
	}
	return &out, nil
}
