package api

import (
	"context"
	"net/http"

	"restaurant-pos/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) registerMenuItemRoutes(r chi.Router) {
	r.Route("/MenuItem", func(r chi.Router) {
		r.Get("/", h.GetAllMenuItems)
		r.Post("/add", h.AddMenuItem)
		r.Get("/available", h.GetAvailableMenuItems)
		r.Get("/category/{category}", h.GetMenuItemsByCategory)
		r.Get("/{menuItemID}", h.GetMenuItemByID)
		r.Post("/toggle/{menuItemID}", h.ToggleAvailability)
		r.Delete("/delete/{menuItemID}", h.DeleteMenuItem)
		r.Put("/{menuItemID}/name", h.updateMenuText("name", h.Menu.UpdateName))
		r.Put("/{menuItemID}/description", h.updateMenuText("description", h.Menu.UpdateDescription))
		r.Put("/{menuItemID}/category", h.updateMenuText("category", h.Menu.UpdateCategory))
		r.Put("/{menuItemID}/price", h.UpdateMenuItemPrice)
	})
}

func (h *Handler) AddMenuItem(w http.ResponseWriter, r *http.Request) {
	var req models.AddMenuItemRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	item, err := h.Menu.AddMenuItem(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Could not add menu item", err)
		return
	}
	h.ok(w, http.StatusCreated, "Menu item added", item)
}

func (h *Handler) GetAllMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Menu.GetAllMenuItems(r.Context())
	if err != nil {
		h.fail(w, r, "Could not list menu items", err)
		return
	}
	h.ok(w, http.StatusOK, "Menu items retrieved", items)
}

func (h *Handler) GetAvailableMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Menu.GetAvailableMenuItems(r.Context())
	if err != nil {
		h.fail(w, r, "Could not list available menu items", err)
		return
	}
	h.ok(w, http.StatusOK, "Available menu items retrieved", items)
}

func (h *Handler) GetMenuItemsByCategory(w http.ResponseWriter, r *http.Request) {
	items, err := h.Menu.GetMenuItemsByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		h.fail(w, r, "Could not list menu items", err)
		return
	}
	h.ok(w, http.StatusOK, "Menu items retrieved", items)
}

func (h *Handler) GetMenuItemByID(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "menuItemID")
	if err != nil {
		h.badRequest(w, "Invalid menu item id", err.Error())
		return
	}
	item, err := h.Menu.GetMenuItemByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not get menu item", err)
		return
	}
	h.ok(w, http.StatusOK, "Menu item retrieved", item)
}

func (h *Handler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "menuItemID")
	if err != nil {
		h.badRequest(w, "Invalid menu item id", err.Error())
		return
	}
	item, err := h.Menu.ToggleAvailability(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not toggle availability", err)
		return
	}
	h.ok(w, http.StatusOK, "Availability toggled", item)
}

func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "menuItemID")
	if err != nil {
		h.badRequest(w, "Invalid menu item id", err.Error())
		return
	}
	if err := h.Menu.DeleteMenuItem(r.Context(), id); err != nil {
		h.fail(w, r, "Could not delete menu item", err)
		return
	}
	h.ok(w, http.StatusOK, "Menu item deleted", nil)
}

func (h *Handler) updateMenuText(field string, update func(ctx context.Context, id int64, value string) (*models.MenuItem, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := int64Param(r, "menuItemID")
		if err != nil {
			h.badRequest(w, "Invalid menu item id", err.Error())
			return
		}
		var value string
		if err := decodeScalar(r, field, &value); err != nil {
			h.badRequest(w, "Invalid request body", err.Error())
			return
		}
		item, err := update(r.Context(), id, value)
		if err != nil {
			h.fail(w, r, "Could not update menu item "+field, err)
			return
		}
		h.ok(w, http.StatusOK, "Menu item "+field+" updated", item)
	}
}

func (h *Handler) UpdateMenuItemPrice(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "menuItemID")
	if err != nil {
		h.badRequest(w, "Invalid menu item id", err.Error())
		return
	}
	var price float64
	if err := decodeScalar(r, "price", &price); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	item, err := h.Menu.UpdatePrice(r.Context(), id, price)
	if err != nil {
		h.fail(w, r, "Could not update menu item price", err)
		return
	}
	h.ok(w, http.StatusOK, "Menu item price updated", item)
}
