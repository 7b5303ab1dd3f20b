package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/basket/internal/shared"
)

// User is a member of one or more shopping lists.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// DisplayName prefers the full name and falls back to the email address.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return u.Email
}

// Item is one entry on a [ShoppingList].
type Item struct {
	ID          int64     `json:"id"`
	ListID      int64     `json:"list_id"`
	Name        string    `json:"name"`
	Quantity    string    `json:"quantity,omitempty"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"is_completed"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate reports whether the item can be sent to the API.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: item name is required", shared.ErrInvalidInput)
	}
	return nil
}

// ShoppingList is a list shared between its owner and members.
type ShoppingList struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	Members     []User    `json:"members,omitempty"`
	Items       []Item    `json:"items,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FindItem returns the index of the item with id, or -1.
func (l *ShoppingList) FindItem(id int64) int {
	for i := range l.Items {
		if l.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Member returns the member with userID, including the owner when the API lists them.
func (l *ShoppingList) Member(userID int64) (User, bool) {
	for _, m := range l.Members {
		if m.ID == userID {
			return m, true
		}
	}
	return User{}, false
}

// HasMember reports whether userID owns or is a member of the list.
func (l *ShoppingList) HasMember(userID int64) bool {
	if l.OwnerID == userID {
		return true
	}
	_, ok := l.Member(userID)
	return ok
}

// Remaining counts items not yet completed.
func (l *ShoppingList) Remaining() int {
	n := 0
	for _, it := range l.Items {
		if !it.Completed {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can hand lists out without sharing slices.
func (l ShoppingList) Clone() ShoppingList {
	c := l
	if l.Members != nil {
		c.Members = make([]User, len(l.Members))
		copy(c.Members, l.Members)
	}
	if l.Items != nil {
		c.Items = make([]Item, len(l.Items))
		copy(c.Items, l.Items)
	}
	return c
}

// ListInput creates or renames a list.
type ListInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (in ListInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: list name is required", shared.ErrInvalidInput)
	}
	return nil
}

// ItemInput creates or updates an item. Nil and empty fields are left out of the request.
type ItemInput struct {
	Name        string `json:"name,omitempty"`
	Quantity    string `json:"quantity,omitempty"`
	Description string `json:"description,omitempty"`
	CategoryID  *int64 `json:"category_id,omitempty"`
	Completed   *bool  `json:"is_completed,omitempty"`
}

// ValidateCreate requires a name, which updates may omit.
func (in ItemInput) ValidateCreate() error {
	return Item{Name: in.Name}.Validate()
}

// ShareInput invites a user to a list by email.
type ShareInput struct {
	Email string `json:"email"`
}

func (in ShareInput) Validate() error {
	if !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", shared.ErrInvalidInput)
	}
	return nil
}
