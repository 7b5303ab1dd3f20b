package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/realtime"
)

func listPath(id int64) string {
	return fmt.Sprintf("/api/v1/lists/%d", id)
}

// Lists returns every list the user owns or was shared.
func (c *Client) Lists(ctx context.Context) ([]models.ShoppingList, error) {
	var lists []models.ShoppingList
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/lists", nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// List returns one list with its items and members.
func (c *Client) List(ctx context.Context, id int64) (*models.ShoppingList, error) {
	var list models.ShoppingList
	if err := c.doRequest(ctx, http.MethodGet, listPath(id), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) CreateList(ctx context.Context, in models.ListInput) (*models.ShoppingList, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var list models.ShoppingList
	err := c.mutate(ctx, mutation{
		method: http.MethodPost,
		path:   "/api/v1/lists",
		body:   in,
		result: &list,
		created: func() string {
			return realtime.ListKey(realtime.EventCreated, list.ID)
		},
	})
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// UpdateList renames or redescribes a list.
func (c *Client) UpdateList(ctx context.Context, id int64, in models.ListInput) (*models.ShoppingList, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var list models.ShoppingList
	err := c.mutate(ctx, mutation{
		method: http.MethodPut,
		path:   listPath(id),
		body:   in,
		result: &list,
		track:  []string{realtime.ListKey(realtime.EventUpdated, id)},
	})
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) DeleteList(ctx context.Context, id int64) error {
	return c.mutate(ctx, mutation{
		method: http.MethodDelete,
		path:   listPath(id),
		track:  []string{realtime.ListKey(realtime.EventDeleted, id)},
	})
}

// ShareList invites the user with email to the list and returns the updated list.
func (c *Client) ShareList(ctx context.Context, id int64, email string) (*models.ShoppingList, error) {
	in := models.ShareInput{Email: email}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var list models.ShoppingList
	err := c.mutate(ctx, mutation{
		method: http.MethodPost,
		path:   listPath(id) + "/share",
		body:   in,
		result: &list,
		track:  []string{realtime.ListKey(realtime.EventShared, id)},
	})
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// RemoveMember revokes userID's access to the list.
func (c *Client) RemoveMember(ctx context.Context, id, userID int64) error {
	return c.mutate(ctx, mutation{
		method: http.MethodDelete,
		path:   fmt.Sprintf("%s/members/%d", listPath(id), userID),
		track:  []string{realtime.ListKey(realtime.EventMemberRemoved, id)},
	})
}
