// Package models defines the shopping list entities shared by the API client, the realtime layer and the view.
//
// The package contains two categories of types:
//
// 1. Entities returned by the remote API
//   - [User] : an account that owns or shares lists
//   - [ShoppingList] : a list with its members and items
//   - [Item] : a single entry on a list
//
// 2. Inputs sent to the remote API
//   - [ListInput] : fields for creating or renaming a list
//   - [ItemInput] : fields for creating or updating an item
//
// Identifiers are server-issued integers. JSON field names follow the API's snake_case.
package models
