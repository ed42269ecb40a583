package db

import (
	"context"

	"restaurant-pos/internal/apperr"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun  bun.IDB
	root *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB, root: bunDB}
}

// InTx runs fn against a transaction-scoped DB. Nested calls join the outer transaction.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	if _, ok := d.Bun.(bun.Tx); ok {
		return fn(ctx, d)
	}
	return database.RunInTx(ctx, d.root, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{Bun: tx, root: d.root})
	})
}

func (d *DB) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	if _, err := d.Bun.NewInsert().Model(item).Exec(ctx); err != nil {
		return apperr.Internal("insert menu item", err)
	}
	return nil
}

func (d *DB) GetMenuItemByID(ctx context.Context, id int64) (*models.MenuItem, error) {
	var item models.MenuItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("menu_item_id = ?", id).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("menu item %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("select menu item", err)
	}
	return &item, nil
}

func (d *DB) list(ctx context.Context, where string, args ...interface{}) ([]models.MenuItem, error) {
	items := []models.MenuItem{}
	q := d.Bun.NewSelect().Model(&items).Order("menu_item_id ASC")
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, apperr.Internal("select menu items", err)
	}
	return items, nil
}

func (d *DB) GetAllMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	return d.list(ctx, "")
}

func (d *DB) GetAvailableMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	return d.list(ctx, "is_available = ?", true)
}

func (d *DB) GetMenuItemsByCategory(ctx context.Context, category string) ([]models.MenuItem, error) {
	return d.list(ctx, "category = ?", category)
}

// SetColumn writes one column of a menu item. column must be a trusted identifier.
func (d *DB) SetColumn(ctx context.Context, id int64, column string, value interface{}) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.MenuItem)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Where("menu_item_id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperr.Internal("update menu item "+column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("menu item %d not found", id)
	}
	return nil
}

func (d *DB) ToggleAvailability(ctx context.Context, id int64) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.MenuItem)(nil)).
		Set("is_available = NOT is_available").
		Where("menu_item_id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperr.Internal("toggle menu item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("menu item %d not found", id)
	}
	return nil
}

// CountReferences counts order items that point at the menu item.
func (d *DB) CountReferences(ctx context.Context, id int64) (int, error) {
	n, err := d.Bun.NewSelect().
		Model((*models.OrderItem)(nil)).
		Where("menu_item_id = ?", id).
		Count(ctx)
	if err != nil {
		return 0, apperr.Internal("count order items for menu item", err)
	}
	return n, nil
}

func (d *DB) DeleteMenuItem(ctx context.Context, id int64) error {
	res, err := d.Bun.NewDelete().
		Model((*models.MenuItem)(nil)).
		Where("menu_item_id = ?", id).
		Exec(ctx)
	if database.IsForeignKeyViolation(err) {
		return apperr.Conflict("menu item %d is referenced by order items", id)
	}
	if err != nil {
		return apperr.Internal("delete menu item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("menu item %d not found", id)
	}
	return nil
}
