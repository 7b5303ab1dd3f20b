package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/realtime"
)

func itemPath(listID, itemID int64) string {
	return fmt.Sprintf("%s/items/%d", listPath(listID), itemID)
}

// Items returns the items on a list.
func (c *Client) Items(ctx context.Context, listID int64) ([]models.Item, error) {
	var items []models.Item
	if err := c.doRequest(ctx, http.MethodGet, listPath(listID)+"/items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateItem adds an item. The broadcast of this create is suppressed by the ignore-next-create flag, and its id
// is tracked once the response arrives.
func (c *Client) CreateItem(ctx context.Context, listID int64, in models.ItemInput) (*models.Item, error) {
	if err := in.ValidateCreate(); err != nil {
		return nil, err
	}

	var item models.Item
	err := c.mutate(ctx, mutation{
		method: http.MethodPost,
		path:   listPath(listID) + "/items",
		body:   in,
		result: &item,
		create: true,
		created: func() string {
			return realtime.ItemKey(realtime.EventCreated, item.ID)
		},
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateItem(ctx context.Context, listID, itemID int64, in models.ItemInput) (*models.Item, error) {
	// The server picks one of the two events; the dispatcher drops the other key on the echo.
	keys := []string{realtime.ItemKey(realtime.EventUpdated, itemID)}
	if in.CategoryID != nil {
		keys = append(keys, realtime.ItemKey(realtime.EventCategoryChanged, itemID))
	}

	var item models.Item
	err := c.mutate(ctx, mutation{
		method: http.MethodPut,
		path:   itemPath(listID, itemID),
		body:   in,
		result: &item,
		track:  keys,
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ToggleItem flips the completed flag. The server broadcasts it as an update.
func (c *Client) ToggleItem(ctx context.Context, listID, itemID int64) (*models.Item, error) {
	var item models.Item
	err := c.mutate(ctx, mutation{
		method: http.MethodPatch,
		path:   itemPath(listID, itemID) + "/toggle",
		result: &item,
		track:  []string{realtime.ItemKey(realtime.EventUpdated, itemID)},
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteItem(ctx context.Context, listID, itemID int64) error {
	return c.mutate(ctx, mutation{
		method: http.MethodDelete,
		path:   itemPath(listID, itemID),
		track:  []string{realtime.ItemKey(realtime.EventDeleted, itemID)},
	})
}
